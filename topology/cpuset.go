package topology

import "math/bits"

const wordBits = 64

// CPUSet is a bitmap of CPU ids, the Go stand-in for hwloc_cpuset_t.
// Implementations of Topology exchange these as slices of machine words
// so the binder's peer-coordination step can ship
// them over mpi.Communicator.AllgatherBitmaps without depending on any
// particular topology library's wire format.
type CPUSet struct {
	words []uint64
}

// NewCPUSet returns an empty set sized to hold CPU ids up to nbits-1.
func NewCPUSet(nbits int) *CPUSet {
	n := (nbits + wordBits - 1) / wordBits
	if n == 0 {
		n = 1
	}
	return &CPUSet{words: make([]uint64, n)}
}

// FromWords reconstructs a CPUSet from its machine-word encoding, as
// received from a peer via AllgatherBitmaps.
func FromWords(words []uint64) *CPUSet {
	cp := make([]uint64, len(words))
	copy(cp, words)
	return &CPUSet{words: cp}
}

// Set marks cpu as a member of the set, growing the backing storage if
// needed.
func (s *CPUSet) Set(cpu int) {
	idx := cpu / wordBits
	for idx >= len(s.words) {
		s.words = append(s.words, 0)
	}
	s.words[idx] |= 1 << uint(cpu%wordBits)
}

// IsZero reports whether the set has no members.
func (s *CPUSet) IsZero() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether s and other have identical membership.
func (s *CPUSet) Equal(other *CPUSet) bool {
	n := len(s.words)
	if len(other.words) > n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(other.words) {
			b = other.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// NumCores returns the number of member CPUs. The engine treats one
// CPU id as one bindable core, matching hwloc_get_nbobjs_inside_cpuset
// used with HWLOC_OBJ_CORE on machines without hyperthread siblings in
// the set.
func (s *CPUSet) NumCores() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// NthCore returns the CPU id of the n-th set member in ascending order,
// 0-indexed.
func (s *CPUSet) NthCore(n int) (cpu int, ok bool) {
	if n < 0 {
		return 0, false
	}
	seen := 0
	for wi, w := range s.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			if seen == n {
				return wi*wordBits + bit, true
			}
			seen++
			w &= w - 1
		}
	}
	return 0, false
}

// Singlify returns a new set containing only the lowest-numbered member
// of s, mirroring hwloc_bitmap_singlify.
func (s *CPUSet) Singlify() *CPUSet {
	out := NewCPUSet(len(s.words) * wordBits)
	if cpu, ok := s.NthCore(0); ok {
		out.Set(cpu)
	}
	return out
}

// ToWords returns the set's machine-word encoding for exchange over
// mpi.Communicator.AllgatherBitmaps.
func (s *CPUSet) ToWords() []uint64 {
	cp := make([]uint64, len(s.words))
	copy(cp, s.words)
	return cp
}

// CPUs returns every member CPU id in ascending order.
func (s *CPUSet) CPUs() []int {
	var out []int
	for wi, w := range s.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			out = append(out, wi*wordBits+bit)
			w &= w - 1
		}
	}
	return out
}
