package dwi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/frame"
)

func TestFrameSamples_Uint16(t *testing.T) {
	nf := frame.NewNativeFrame[uint16](16, 2, 2, 4, 1)
	copy(nf.RawData, []uint16{10, 20, 30, 40})

	samples, err := frameSamples(nf)

	require.NoError(t, err)
	assert.Equal(t, []int16{10, 20, 30, 40}, samples)
}

func TestFrameSamples_Uint8(t *testing.T) {
	nf := frame.NewNativeFrame[uint8](8, 1, 3, 3, 1)
	copy(nf.RawData, []uint8{1, 2, 3})

	samples, err := frameSamples(nf)

	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3}, samples)
}

func TestFrameSamples_MultiSampleKeepsFirst(t *testing.T) {
	// 2 pixels x 3 samples per pixel, unrolled in RawData.
	nf := frame.NewNativeFrame[uint16](16, 1, 2, 2, 3)
	copy(nf.RawData, []uint16{7, 8, 9, 11, 12, 13})

	samples, err := frameSamples(nf)

	require.NoError(t, err)
	assert.Equal(t, []int16{7, 11}, samples)
}

func TestFrameSamples_UnsupportedSampleType(t *testing.T) {
	nf := frame.NewNativeFrame[int64](64, 1, 1, 1, 1)

	_, err := frameSamples(nf)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported pixel sample type")
}
