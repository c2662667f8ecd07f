package dwi

import "fmt"

// fakeSlice is a synthetic SliceMeta for driving the pipeline in tests.
type fakeSlice struct {
	rows, cols  int
	origin      [3]float64
	spacing     [3]float64
	orientation [6]float64
	location    string
	bValue      *float64
	gradient    *[3]float64
	frames      [][]int16
	framesErr   error
}

func (f *fakeSlice) Rows() int               { return f.rows }
func (f *fakeSlice) Cols() int               { return f.cols }
func (f *fakeSlice) Origin() [3]float64      { return f.origin }
func (f *fakeSlice) Spacing() [3]float64     { return f.spacing }
func (f *fakeSlice) Orientation() [6]float64 { return f.orientation }
func (f *fakeSlice) SliceLocation() string   { return f.location }

func (f *fakeSlice) DiffusionBValue() (float64, bool) {
	if f.bValue == nil {
		return 0, false
	}
	return *f.bValue, true
}

func (f *fakeSlice) DiffusionGradient() ([3]float64, bool) {
	if f.gradient == nil {
		return [3]float64{}, false
	}
	return *f.gradient, true
}

func (f *fakeSlice) Frames() ([][]int16, error) {
	if f.framesErr != nil {
		return nil, f.framesErr
	}
	return f.frames, nil
}

// axialOrientation is the ImageOrientationPatient sextuple of a plain
// axial acquisition.
var axialOrientation = [6]float64{1, 0, 0, 0, 1, 0}

// flatFrame builds one rows x cols frame filled with val.
func flatFrame(rows, cols int, val int16) []int16 {
	frame := make([]int16, rows*cols)
	for i := range frame {
		frame[i] = val
	}
	return frame
}

// newFakeSlice builds a 2x2 axial slice at the given stack location with a
// constant sample value.
func newFakeSlice(location string, z float64, val int16) *fakeSlice {
	return &fakeSlice{
		rows:        2,
		cols:        2,
		origin:      [3]float64{0, 0, z},
		spacing:     [3]float64{1, 1, 1},
		orientation: axialOrientation,
		location:    location,
		frames:      [][]int16{flatFrame(2, 2, val)},
	}
}

func ptrF(v float64) *float64       { return &v }
func ptrV(v [3]float64) *[3]float64 { return &v }

// interleavedSeries builds a slice-major series: for each of
// slicesPerVolume locations, one slice per volume. Sample values encode
// volume*100 + location so the permutation can be verified.
func interleavedSeries(slicesPerVolume, nVolumes int, bValues []float64, gradients [][3]float64) []SliceMeta {
	var headers []SliceMeta
	for m := 0; m < slicesPerVolume; m++ {
		for k := 0; k < nVolumes; k++ {
			s := newFakeSlice(fmt.Sprintf("0\\0\\%d", m), float64(m), int16(k*100+m))
			if bValues != nil {
				s.bValue = ptrF(bValues[k])
				s.gradient = ptrV(gradients[k])
			}
			headers = append(headers, s)
		}
	}
	return headers
}

// volumeMajorSeries builds an already ordered series: all slices of volume
// 0, then volume 1, and so on.
func volumeMajorSeries(slicesPerVolume, nVolumes int, bValues []float64, gradients [][3]float64) []SliceMeta {
	var headers []SliceMeta
	for k := 0; k < nVolumes; k++ {
		for m := 0; m < slicesPerVolume; m++ {
			s := newFakeSlice(fmt.Sprintf("0\\0\\%d", m), float64(m), int16(k*100+m))
			if bValues != nil {
				s.bValue = ptrF(bValues[k])
				s.gradient = ptrV(gradients[k])
			}
			headers = append(headers, s)
		}
	}
	return headers
}

func seriesNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("slice%04d.dcm", i)
	}
	return names
}
