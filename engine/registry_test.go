package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/progress/internal/demo"
)

func TestRegistry_LookupOrCreate_NewStreamGetsExactlyOneSlot(t *testing.T) {
	r := NewRegistry(4, 16, true)
	stream := demo.Stream{Label: "x"}

	q1, err := r.lookupOrCreate(stream, nil)
	require.NoError(t, err)
	require.NotNil(t, q1)
	assert.Equal(t, 1, r.NumInputStreams())

	q2, err := r.lookupOrCreate(stream, nil)
	require.NoError(t, err)
	assert.Same(t, q1, q2)
	assert.Equal(t, 1, r.NumInputStreams(), "repeat lookup for the same stream must not grow the registry")
}

func TestRegistry_CapacityExceededIsConfigError(t *testing.T) {
	r := NewRegistry(2, 16, true)
	_, err := r.lookupOrCreate(demo.Stream{Label: "a"}, nil)
	require.NoError(t, err)
	_, err = r.lookupOrCreate(demo.Stream{Label: "b"}, nil)
	require.NoError(t, err)

	_, err = r.lookupOrCreate(demo.Stream{Label: "c"}, nil)
	require.Error(t, err)
	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindConfig, engErr.Kind)
}

func TestRegistry_CallerCacheSkipsScan(t *testing.T) {
	r := NewRegistry(4, 16, true)
	cache := NewCallerCache()
	stream := demo.Stream{Label: "x"}

	q1, err := r.lookupOrCreate(stream, cache)
	require.NoError(t, err)

	q2, err := r.lookupOrCreate(stream, cache)
	require.NoError(t, err)
	assert.Same(t, q1, q2)
}

func TestRegistry_PreloadDefaultStream(t *testing.T) {
	r := NewRegistry(4, 16, true)
	r.preloadDefaultStream(DefaultStream)

	assert.Equal(t, 1, r.NumInputStreams())
	assert.Equal(t, DefaultStream, r.StreamAt(0))
}
