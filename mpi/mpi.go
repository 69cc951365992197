// Package mpi is the narrow interface the topology binder uses to
// discover same-host peers and exchange CPU-set bitmaps with them. A
// real binding would wrap an MPI implementation's local communicator
// and Allgather/Allgatherv calls; that wrapper is an external
// collaborator and does not ship here.
package mpi

// Communicator exposes exactly what the topology binder needs: this
// rank's position among same-host peers, and a way to gather every
// peer's CPU-set bitmap (encoded as a slice of machine words) so each
// rank can compute its binding offset.
type Communicator interface {
	// Rank is this process's rank in the world communicator.
	Rank() int
	// LocalRank is this process's rank among peers on the same host,
	// ordered consistently with LocalSize.
	LocalRank() int
	// LocalSize is the number of peers on the same host, including
	// this rank.
	LocalSize() int
	// AllgatherBitmaps exchanges one variable-length bitmap per local
	// peer and returns all of them ordered by local rank, this rank's
	// own bitmap included at index LocalRank(). Mirrors the original's
	// two-step Allgather (lengths) + Allgatherv (payload) exchange.
	AllgatherBitmaps(mine []uint64) ([][]uint64, error)
}

// Loopback is a single-rank, single-host Communicator: rank 0 of a
// world and local size of 1. It is the default used when no real MPI
// binding is wired in, and is sufficient for standalone processes and
// tests, since the engine never requires more than the Communicator
// interface above.
type Loopback struct{}

func (Loopback) Rank() int      { return 0 }
func (Loopback) LocalRank() int { return 0 }
func (Loopback) LocalSize() int { return 1 }

func (Loopback) AllgatherBitmaps(mine []uint64) ([][]uint64, error) {
	return [][]uint64{mine}, nil
}
