package dwi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stackedSeries builds a volume-major series whose slice origins advance
// along z by step per location.
func stackedSeries(slicesPerVolume, nVolumes int, step float64) []SliceMeta {
	headers := volumeMajorSeries(slicesPerVolume, nVolumes, nil, nil)
	for i, h := range headers {
		m := i % slicesPerVolume
		h.(*fakeSlice).origin = [3]float64{0, 0, float64(m) * step}
	}
	return headers
}

func TestDetermineSliceOrder_InferiorSuperior(t *testing.T) {
	c := NewConverter(stackedSeries(3, 1, 2.0), seriesNames(3))
	require.NoError(t, c.Load())

	c.DetermineSliceOrder()
	assert.True(t, c.SliceOrderIS())

	// correction is a no-op when the projection is already positive
	before := append([]float64(nil), c.Volume().Direction.RawMatrix().Data...)
	c.ApplySliceOrder()
	assert.Equal(t, before, c.Volume().Direction.RawMatrix().Data)
}

func TestDetermineSliceOrder_SuperiorInferiorFlipsAxis(t *testing.T) {
	c := NewConverter(stackedSeries(3, 1, -2.0), seriesNames(3))
	require.NoError(t, c.Load())

	c.DetermineSliceOrder()
	assert.False(t, c.SliceOrderIS())

	c.ApplySliceOrder()
	d := c.Volume().Direction
	assert.InDelta(t, -1.0, d.At(2, 2), 1e-15)
	assert.InDelta(t, 1.0, d.At(0, 0), 1e-15)
	assert.InDelta(t, 1.0, d.At(1, 1), 1e-15)
}

// For an interleaved series the next slice of the same spatial stack is
// NVolume files away, not the adjacent file.
func TestDetermineSliceOrder_InterleavedUsesStackNeighbor(t *testing.T) {
	headers := interleavedSeries(3, 2, nil, nil)
	for i, h := range headers {
		m := i / 2 // location index in slice-major order
		h.(*fakeSlice).origin = [3]float64{0, 0, float64(m) * -1.5}
	}
	c := NewConverter(headers, seriesNames(len(headers)))
	require.NoError(t, c.Load())
	require.True(t, c.Interleaved())

	c.DetermineSliceOrder()
	assert.False(t, c.SliceOrderIS())
}

func TestSetSliceOrderIS_StaticDeclaration(t *testing.T) {
	c := NewConverter(stackedSeries(2, 1, 2.0), seriesNames(2))
	require.NoError(t, c.Load())

	// a vendor that knows its order skips detection entirely
	c.SetSliceOrderIS(false)
	c.ApplySliceOrder()
	assert.InDelta(t, -1.0, c.Volume().Direction.At(2, 2), 1e-15)
}
