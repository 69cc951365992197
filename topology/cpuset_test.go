package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPUSet_SetAndCPUs(t *testing.T) {
	s := NewCPUSet(8)
	s.Set(1)
	s.Set(3)
	s.Set(65)
	assert.Equal(t, []int{1, 3, 65}, s.CPUs())
	assert.Equal(t, 3, s.NumCores())
}

func TestCPUSet_IsZero(t *testing.T) {
	s := NewCPUSet(4)
	assert.True(t, s.IsZero())
	s.Set(2)
	assert.False(t, s.IsZero())
}

func TestCPUSet_Equal(t *testing.T) {
	a := NewCPUSet(4)
	b := NewCPUSet(128)
	a.Set(2)
	b.Set(2)
	assert.True(t, a.Equal(b))
	b.Set(70)
	assert.False(t, a.Equal(b))
}

func TestCPUSet_NthCore(t *testing.T) {
	s := NewCPUSet(8)
	s.Set(2)
	s.Set(5)
	s.Set(7)

	cpu, ok := s.NthCore(0)
	assert.True(t, ok)
	assert.Equal(t, 2, cpu)

	cpu, ok = s.NthCore(2)
	assert.True(t, ok)
	assert.Equal(t, 7, cpu)

	_, ok = s.NthCore(3)
	assert.False(t, ok)
}

func TestCPUSet_Singlify(t *testing.T) {
	s := NewCPUSet(8)
	s.Set(3)
	s.Set(5)
	single := s.Singlify()
	assert.Equal(t, []int{3}, single.CPUs())
}

func TestCPUSet_ToWordsRoundTrip(t *testing.T) {
	s := NewCPUSet(8)
	s.Set(1)
	s.Set(9)
	round := FromWords(s.ToWords())
	assert.True(t, s.Equal(round))
}
