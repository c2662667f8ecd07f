package dwi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// dicomSlice is the SliceMeta implementation backed by a parsed DICOM file.
type dicomSlice struct {
	path string
	ds   dicom.Dataset
}

// OpenSlice parses one DICOM slice file and exposes it through SliceMeta.
func OpenSlice(path string) (SliceMeta, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DICOM file %s: %w", path, err)
	}
	return &dicomSlice{path: path, ds: ds}, nil
}

// OpenSeries opens every file in order. Any parse failure is fatal; no
// partial series is returned.
func OpenSeries(paths []string) ([]SliceMeta, error) {
	headers := make([]SliceMeta, 0, len(paths))
	for _, p := range paths {
		h, err := OpenSlice(p)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func (s *dicomSlice) firstInt(t tag.Tag) int {
	e, err := s.ds.FindElementByTag(t)
	if err != nil {
		return 0
	}
	if ints, ok := e.Value.GetValue().([]int); ok && len(ints) > 0 {
		return ints[0]
	}
	return 0
}

func (s *dicomSlice) strings(t tag.Tag) []string {
	e, err := s.ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	ss, _ := e.Value.GetValue().([]string)
	return ss
}

// floats handles both FD-encoded values and decimal strings, since vendors
// ship the diffusion tags with either VR.
func (s *dicomSlice) floats(t tag.Tag) []float64 {
	e, err := s.ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	switch v := e.Value.GetValue().(type) {
	case []float64:
		return v
	case []string:
		out := make([]float64, 0, len(v))
		for _, str := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

func (s *dicomSlice) Rows() int { return s.firstInt(tag.Rows) }
func (s *dicomSlice) Cols() int { return s.firstInt(tag.Columns) }

func (s *dicomSlice) Origin() [3]float64 {
	var o [3]float64
	fs := s.floats(tag.ImagePositionPatient)
	copy(o[:], fs)
	return o
}

func (s *dicomSlice) Spacing() [3]float64 {
	sp := [3]float64{1.0, 1.0, 1.0}
	if fs := s.floats(tag.PixelSpacing); len(fs) == 2 {
		// PixelSpacing is row spacing then column spacing
		sp[0] = fs[1]
		sp[1] = fs[0]
	}
	if fs := s.floats(tag.SpacingBetweenSlices); len(fs) == 1 {
		sp[2] = fs[0]
	} else if fs := s.floats(tag.SliceThickness); len(fs) == 1 {
		sp[2] = fs[0]
	}
	return sp
}

func (s *dicomSlice) Orientation() [6]float64 {
	var o [6]float64
	copy(o[:], s.floats(tag.ImageOrientationPatient))
	return o
}

// SliceLocation uses the raw ImagePositionPatient string rather than the
// optional SliceLocation tag; the position string is always present and
// distinguishes stack locations reliably.
func (s *dicomSlice) SliceLocation() string {
	if ss := s.strings(tag.ImagePositionPatient); len(ss) > 0 {
		return strings.Join(ss, "\\")
	}
	if fs := s.floats(tag.ImagePositionPatient); len(fs) == 3 {
		return fmt.Sprintf("%g\\%g\\%g", fs[0], fs[1], fs[2])
	}
	return ""
}

func (s *dicomSlice) DiffusionBValue() (float64, bool) {
	fs := s.floats(tag.DiffusionBValue)
	if len(fs) != 1 {
		return 0, false
	}
	return fs[0], true
}

func (s *dicomSlice) DiffusionGradient() ([3]float64, bool) {
	fs := s.floats(tag.DiffusionGradientOrientation)
	if len(fs) != 3 {
		return [3]float64{}, false
	}
	return [3]float64{fs[0], fs[1], fs[2]}, true
}

func (s *dicomSlice) Frames() ([][]int16, error) {
	e, err := s.ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%s has no pixel data: %w", s.path, err)
	}
	info, ok := e.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected pixel data value", s.path)
	}
	out := make([][]int16, 0, len(info.Frames))
	for i, fr := range info.Frames {
		native, err := fr.GetNativeFrame()
		if err != nil {
			return nil, fmt.Errorf("%s frame %d is not native: %w", s.path, i, err)
		}
		samples, err := frameSamples(native)
		if err != nil {
			return nil, fmt.Errorf("%s frame %d: %w", s.path, i, err)
		}
		out = append(out, samples)
	}
	return out, nil
}

// frameSamples flattens one native frame into int16 samples. RawDataSlice
// returns a slice typed by BitsPerSample; multi-sample pixels keep only the
// first sample, since diffusion series are monochrome.
func frameSamples(native frame.INativeFrame) ([]int16, error) {
	stride := native.SamplesPerPixel()
	if stride < 1 {
		stride = 1
	}
	switch raw := native.RawDataSlice().(type) {
	case []uint8:
		return pickSamples(raw, stride), nil
	case []uint16:
		return pickSamples(raw, stride), nil
	case []uint32:
		return pickSamples(raw, stride), nil
	default:
		return nil, fmt.Errorf("unsupported pixel sample type %T (%d bits per sample)", raw, native.BitsPerSample())
	}
}

func pickSamples[I interface{ uint8 | uint16 | uint32 }](raw []I, stride int) []int16 {
	samples := make([]int16, 0, len(raw)/stride)
	for j := 0; j < len(raw); j += stride {
		samples = append(samples, int16(raw[j]))
	}
	return samples
}
