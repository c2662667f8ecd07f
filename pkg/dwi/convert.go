package dwi

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// Converter assembles a diffusion-weighted DICOM series into a single
// volume-major 3D volume plus its gradient table, ready for serialization.
// It is the Go rendering of the scanner-independent conversion pipeline:
// load and stack slices, detect and undo slice interleaving, fix the
// through-plane axis for superior-to-inferior acquisitions, and scale and
// rotate the diffusion gradients.
type Converter struct {
	headers   []SliceMeta
	fileNames []string

	vol *Volume

	// the whole dataset lives in a single multi-frame file
	multiSliceVolume bool
	// slice order is inferior-to-superior
	sliceOrderIS bool
	// slices arrived in slice-major order and were permuted
	interleaved bool

	slicesPerVolume int
	nSlice          int
	nVolume         int

	// one b-value and one unit gradient direction per volume
	bValues   []float64
	gradients [][3]float64

	// measurement frame for the gradients if different than the patient
	// reference frame
	measurementFrame            *mat.Dense
	useIdentityMeasurementFrame bool
	useBMatrixGradients         bool

	space string
}

// NewConverter wraps an ordered slice series. Both slices' headers and
// their file names must be in acquisition file order. The volume is not
// built until Load is called.
func NewConverter(headers []SliceMeta, fileNames []string) *Converter {
	return &Converter{
		headers:          headers,
		fileNames:        fileNames,
		sliceOrderIS:     true,
		measurementFrame: identity3(),
		space:            "left-posterior-superior",
	}
}

// SetUseIdentityMeasurementFrame requests that emitted gradients be rotated
// by the inverse measurement frame and that the serialized measurement
// frame be the identity.
func (c *Converter) SetUseIdentityMeasurementFrame(v bool) { c.useIdentityMeasurementFrame = v }

// SetUseBMatrixGradientDirections records that gradient directions were
// derived from the b-matrix rather than the reported directions. Vendor
// extractors consult it; it is also echoed into the output comment block.
func (c *Converter) SetUseBMatrixGradientDirections(v bool) { c.useBMatrixGradients = v }

// SetMeasurementFrame installs the frame the gradient directions were
// reported in. It defaults to identity.
func (c *Converter) SetMeasurementFrame(m *mat.Dense) { c.measurementFrame = m }

// SetMeasurementFrameIdentity resets the measurement frame to identity.
func (c *Converter) SetMeasurementFrameIdentity() { c.measurementFrame = identity3() }

// Volume returns the assembled volume. Nil until Load succeeds.
func (c *Converter) Volume() *Volume { return c.vol }

// MeasurementFrame returns the current gradient measurement frame.
func (c *Converter) MeasurementFrame() *mat.Dense { return c.measurementFrame }

// SpaceDefinition returns the anatomical space the volume is expressed in.
func (c *Converter) SpaceDefinition() string { return c.space }

// NVolume returns the number of acquired diffusion volumes.
func (c *Converter) NVolume() int { return c.nVolume }

// SlicesPerVolume returns the slice count of one diffusion volume.
func (c *Converter) SlicesPerVolume() int { return c.slicesPerVolume }

// NSlice returns the total slice count across all volumes.
func (c *Converter) NSlice() int { return c.nSlice }

// Interleaved reports whether the input arrived slice-major and was
// permuted during Load.
func (c *Converter) Interleaved() bool { return c.interleaved }

// MultiSliceVolume reports whether the series was a single multi-frame file.
func (c *Converter) MultiSliceVolume() bool { return c.multiSliceVolume }

// SliceOrderIS reports the detected (or declared) slice stacking order.
func (c *Converter) SliceOrderIS() bool { return c.sliceOrderIS }

// BValues returns the per-volume diffusion weightings.
func (c *Converter) BValues() []float64 { return c.bValues }

// Gradients returns the per-volume unit gradient directions.
func (c *Converter) Gradients() [][3]float64 { return c.gradients }

// Layout describes how the flat slice sequence maps onto volumes. Vendor
// gradient extractors use it to locate the header that describes each
// volume.
type Layout struct {
	NSlice          int
	SlicesPerVolume int
	NVolume         int
	Interleaved     bool
}

// Layout returns the volume layout established by Load.
func (c *Converter) Layout() Layout {
	return Layout{
		NSlice:          c.nSlice,
		SlicesPerVolume: c.slicesPerVolume,
		NVolume:         c.nVolume,
		Interleaved:     c.interleaved,
	}
}

// Load builds the 3D volume from the slice series: samples are stacked in
// file order, geometry is taken from slice 0, and slice-major inputs are
// permuted into volume-major order. Any read or decode failure is fatal;
// no partial volume is kept.
func (c *Converter) Load() error {
	if len(c.headers) == 0 {
		return fmt.Errorf("no input slices")
	}
	c.nSlice = len(c.headers)

	if err := c.assemble(); err != nil {
		c.vol = nil
		return err
	}

	h0 := c.headers[0]
	c.vol.Origin = h0.Origin()
	c.vol.Spacing = h0.Spacing()

	if !c.multiSliceVolume {
		if err := c.resolveInterleave(); err != nil {
			c.vol = nil
			return err
		}
	}

	c.vol.SetDirectionFromOrientation(h0.Orientation())
	slog.Debug("assembled volume",
		"cols", c.vol.Cols, "rows", c.vol.Rows, "slices", c.vol.Slices,
		"multiFrame", c.multiSliceVolume, "interleaved", c.interleaved)
	return nil
}

// assemble stacks the decoded frames into one 3D buffer. A series of N
// single-frame files becomes an N-slice volume; exactly one input file is
// read as one multi-frame block and flagged so de-interleaving is skipped.
func (c *Converter) assemble() error {
	h0 := c.headers[0]
	rows, cols := h0.Rows(), h0.Cols()
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	if len(c.headers) == 1 {
		frames, err := c.headers[0].Frames()
		if err != nil {
			return fmt.Errorf("failed to read DICOM volume: %w", err)
		}
		c.multiSliceVolume = true
		c.nSlice = len(frames)
		c.vol = NewVolume(cols, rows, len(frames))
		for z, frame := range frames {
			if err := c.copyFrame(z, frame); err != nil {
				return err
			}
		}
		return nil
	}

	c.multiSliceVolume = false
	c.vol = NewVolume(cols, rows, len(c.headers))
	for z, h := range c.headers {
		frames, err := h.Frames()
		if err != nil {
			return fmt.Errorf("failed to read DICOM slice %d: %w", z, err)
		}
		if len(frames) != 1 {
			return fmt.Errorf("slice %d: expected a single frame, got %d", z, len(frames))
		}
		if err := c.copyFrame(z, frames[0]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) copyFrame(z int, samples []int16) error {
	plane := c.vol.Cols * c.vol.Rows
	if len(samples) != plane {
		return fmt.Errorf("slice %d: frame has %d samples, want %d", z, len(samples), plane)
	}
	copy(c.vol.Data[z*plane:(z+1)*plane], samples)
	return nil
}

// SetVolumeCount declares the number of diffusion volumes directly. Needed
// for the single multi-frame file case, where the slice-location map is
// never consulted and the count comes from vendor metadata or a gradient
// override file.
func (c *Converter) SetVolumeCount(n int) error {
	if n <= 0 || c.nSlice%n != 0 {
		return fmt.Errorf("%w: %d slices, %d volumes", ErrUnevenSliceCount, c.nSlice, n)
	}
	c.nVolume = n
	c.slicesPerVolume = c.nSlice / n
	return nil
}
