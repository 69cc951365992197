// Package cacheline provides cache-line sizing and padding helpers used to
// keep hot atomic fields on separate cache lines across the engine.
package cacheline

// Size is the assumed cache line size for padding decisions. Most x86-64
// and arm64 parts use 64 bytes; getting this slightly wrong costs
// performance, not correctness.
const Size = 64

// Pad is zero-sized-in-intent filler embedded between hot fields to push
// them onto separate cache lines and avoid false sharing between the
// registry's publishing writer and its concurrent readers.
type Pad [Size]byte
