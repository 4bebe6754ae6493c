package stretch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOWriteRead(t *testing.T) {
	f := newFIFO(4)

	f.Write([]float64{1, 2, 3})
	assert.Equal(t, 3, f.Len())

	dst := make([]float64, 2)
	assert.Equal(t, 2, f.Read(dst))
	assert.Equal(t, []float64{1, 2}, dst)
	assert.Equal(t, 1, f.Len())
}

func TestFIFOReadBeyondAvailable(t *testing.T) {
	f := newFIFO(8)
	f.Write([]float64{1, 2})

	dst := make([]float64, 5)
	assert.Equal(t, 2, f.Read(dst))
	assert.Equal(t, 0, f.Len())
}

func TestFIFOGrowsPreservingOrder(t *testing.T) {
	f := newFIFO(4)

	// Interleave writes and reads so the data wraps before growing.
	f.Write([]float64{1, 2, 3})
	dst := make([]float64, 2)
	f.Read(dst)

	in := make([]float64, 100)
	for i := range in {
		in[i] = float64(i)
	}
	f.Write(in)

	require.Equal(t, 101, f.Len())
	out := make([]float64, 101)
	require.Equal(t, 101, f.Read(out))
	assert.Equal(t, 3.0, out[0])
	for i := 0; i < 100; i++ {
		assert.Equal(t, float64(i), out[i+1])
	}
}

func TestFIFODiscard(t *testing.T) {
	f := newFIFO(8)
	f.Write([]float64{1, 2, 3, 4})

	assert.Equal(t, 2, f.Discard(2))
	dst := make([]float64, 1)
	f.Read(dst)
	assert.Equal(t, 3.0, dst[0])

	// Discard beyond available drops what is there.
	assert.Equal(t, 1, f.Discard(10))
	assert.Equal(t, 0, f.Len())
}

func TestFIFOWriteZerosAndClear(t *testing.T) {
	f := newFIFO(4)
	f.WriteZeros(10)
	assert.Equal(t, 10, f.Len())

	dst := make([]float64, 10)
	f.Read(dst)
	for _, v := range dst {
		assert.Zero(t, v)
	}

	f.Write([]float64{1})
	f.Clear()
	assert.Equal(t, 0, f.Len())
}
