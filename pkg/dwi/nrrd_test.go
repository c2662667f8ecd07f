package dwi

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goldenConverter builds a deterministic 2x2x(2x2) acquisition for
// serializer tests.
func goldenConverter(t *testing.T) *Converter {
	t.Helper()
	headers := make([]SliceMeta, 4)
	for i := range headers {
		k, m := i/2, i%2 // volume, location
		s := newFakeSlice([]string{"A", "B"}[m], float64(m)*2.5, int16(k*100+m+1))
		s.spacing = [3]float64{0.5, 0.5, 2.5}
		s.origin = [3]float64{-1, -2, 3 + float64(m)*2.5}
		headers[i] = s
	}
	headers[0].(*fakeSlice).origin = [3]float64{-1, -2, 3}

	c := NewConverter(headers, seriesNames(4))
	require.NoError(t, c.Load())
	require.NoError(t, c.SetGradients([]float64{0, 1000}, [][3]float64{{0, 0, 0}, {1, 0, 0}}))
	return c
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "2.5000000000000000e+00", formatFloat(2.5, 17))
	assert.Equal(t, "0.0000000000000000e+00", formatFloat(0, 17))
	assert.Equal(t, "1.0000000000000000e+03", formatFloat(1000, 17))
	assert.Equal(t, "-5.0000000000000000e-01", formatFloat(-0.5, 17))
}

func TestWriteNRRD_SplitHeaderGolden(t *testing.T) {
	c := goldenConverter(t)
	dir := t.TempDir()
	headerName := filepath.Join(dir, "dwi.nhdr")

	comment := c.MakeFileComment("test", 0.2)
	require.NoError(t, c.WriteNRRD(headerName, comment))

	data, err := os.ReadFile(headerName)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "nhdr_header", data)
}

func TestWriteNRRD_SplitWritesRawSibling(t *testing.T) {
	c := goldenConverter(t)
	dir := t.TempDir()
	require.NoError(t, c.WriteNRRD(filepath.Join(dir, "dwi.nhdr"), ""))

	raw, err := os.ReadFile(filepath.Join(dir, "dwi.raw"))
	require.NoError(t, err)
	require.Len(t, raw, 2*2*4*2)

	// volume-major sample order, little endian
	first := int16(binary.LittleEndian.Uint16(raw[:2]))
	assert.Equal(t, int16(1), first)
}

func TestWriteNRRD_SingleFileInlinesData(t *testing.T) {
	c := goldenConverter(t)
	dir := t.TempDir()
	name := filepath.Join(dir, "dwi.nrrd")
	require.NoError(t, c.WriteNRRD(name, ""))

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	text := string(data)

	assert.NotContains(t, text, "content:")
	assert.NotContains(t, text, "data file:")
	assert.Contains(t, text, "type: short\n")
	assert.Contains(t, text, "sizes: 2 2 2 2\n")
	assert.Contains(t, text, "modality:=DWMRI\n")
	assert.Contains(t, text, "DWMRI_b-value:=1.0000000000000000e+03\n")

	// raw samples follow the blank line terminating the header
	sep := strings.Index(text, "\n\n")
	require.Positive(t, sep)
	require.Len(t, data[sep+2:], 2*2*4*2)
}

func TestWriteNRRD_IdentityFrameSubstitution(t *testing.T) {
	c := goldenConverter(t)
	c.SetMeasurementFrameIdentity()
	c.SetUseIdentityMeasurementFrame(true)
	dir := t.TempDir()
	name := filepath.Join(dir, "dwi.nrrd")
	require.NoError(t, c.WriteNRRD(name, ""))

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data),
		"measurement frame: (1.0000000000000000e+00,0.0000000000000000e+00,0.0000000000000000e+00)")
}

func TestMakeFileComment_EchoesOptions(t *testing.T) {
	c := goldenConverter(t)
	c.SetUseIdentityMeasurementFrame(true)
	c.SetUseBMatrixGradientDirections(true)
	comment := c.MakeFileComment("1.0", 0.15)

	assert.Contains(t, comment, "# --smallGradientThreshold 0.15\n")
	assert.Contains(t, comment, "# --useIdentityMeasurementFrame\n")
	assert.Contains(t, comment, "# --useBMatrixGradientDirections\n")
	assert.True(t, strings.HasPrefix(comment, "#\n#\n"))
}
