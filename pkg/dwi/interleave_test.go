package dwi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_VolumeMajorSeriesIsNotPermuted(t *testing.T) {
	headers := volumeMajorSeries(3, 2, nil, nil)
	c := NewConverter(headers, seriesNames(len(headers)))
	require.NoError(t, c.Load())

	assert.False(t, c.Interleaved())
	assert.Equal(t, 3, c.SlicesPerVolume())
	assert.Equal(t, 2, c.NVolume())

	// slice m of volume k still holds value k*100+m
	for k := 0; k < 2; k++ {
		for m := 0; m < 3; m++ {
			assert.Equal(t, int16(k*100+m), c.Volume().At(0, 0, k*3+m))
		}
	}
}

func TestLoad_SliceMajorSeriesIsDeinterleaved(t *testing.T) {
	headers := interleavedSeries(3, 2, nil, nil)
	c := NewConverter(headers, seriesNames(len(headers)))
	require.NoError(t, c.Load())

	assert.True(t, c.Interleaved())
	assert.Equal(t, 3, c.SlicesPerVolume())
	assert.Equal(t, 2, c.NVolume())

	// after de-interleaving the slices of each volume are contiguous
	for k := 0; k < 2; k++ {
		for m := 0; m < 3; m++ {
			assert.Equal(t, int16(k*100+m), c.Volume().At(0, 0, k*3+m))
		}
	}
}

func TestLoad_UnevenSliceCountIsFatal(t *testing.T) {
	// 3 files across 2 locations cannot partition into volumes
	headers := []SliceMeta{
		newFakeSlice("0", 0, 1),
		newFakeSlice("1", 1, 2),
		newFakeSlice("0", 0, 3),
	}
	c := NewConverter(headers, seriesNames(3))
	err := c.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnevenSliceCount))
	assert.Nil(t, c.Volume(), "no partial volume after an integrity error")
}

func TestLoad_SingleFileIsNeverPermuted(t *testing.T) {
	// ambiguity tie-break: a lone input file is read as one block and
	// never considered for interleaving
	headers := volumeMajorSeries(1, 1, nil, nil)
	c := NewConverter(headers, seriesNames(1))
	require.NoError(t, c.Load())
	assert.True(t, c.MultiSliceVolume())
	assert.False(t, c.Interleaved())
	assert.Equal(t, 1, c.NSlice())
}

func TestLoad_SingleLocationManyVolumes(t *testing.T) {
	// all slices share one location: slicesPerVolume == 1, nothing to permute
	headers := []SliceMeta{
		newFakeSlice("0", 0, 1),
		newFakeSlice("0", 0, 2),
	}
	c := NewConverter(headers, seriesNames(2))
	require.NoError(t, c.Load())
	assert.False(t, c.Interleaved())
	assert.Equal(t, 1, c.SlicesPerVolume())
	assert.Equal(t, 2, c.NVolume())
	assert.Equal(t, int16(1), c.Volume().At(0, 0, 0))
	assert.Equal(t, int16(2), c.Volume().At(0, 0, 1))
}

func TestLoad_MultiFrameFileSkipsDeinterleaving(t *testing.T) {
	// one file holding 8 frames; locations would suggest interleave but
	// multi-frame volumes are never permuted
	frames := make([][]int16, 8)
	for i := range frames {
		frames[i] = flatFrame(2, 2, int16(i))
	}
	s := &fakeSlice{
		rows: 2, cols: 2,
		spacing:     [3]float64{1, 1, 1},
		orientation: axialOrientation,
		location:    "0",
		frames:      frames,
	}
	c := NewConverter([]SliceMeta{s}, []string{"multi.dcm"})
	require.NoError(t, c.Load())

	assert.True(t, c.MultiSliceVolume())
	assert.False(t, c.Interleaved())
	assert.Equal(t, 8, c.NSlice())
	for z := 0; z < 8; z++ {
		assert.Equal(t, int16(z), c.Volume().At(0, 0, z))
	}

	// volume count comes from metadata, not the location map
	require.NoError(t, c.SetVolumeCount(4))
	assert.Equal(t, 2, c.SlicesPerVolume())
}

func TestLoad_ReadFailureAbortsConstruction(t *testing.T) {
	headers := volumeMajorSeries(2, 1, nil, nil)
	headers[1] = &fakeSlice{
		rows: 2, cols: 2,
		orientation: axialOrientation,
		location:    "1",
		framesErr:   errors.New("decode failed"),
	}
	c := NewConverter(headers, seriesNames(2))
	require.Error(t, c.Load())
	assert.Nil(t, c.Volume())
}
