package dwi

import (
	"fmt"
	"math"
)

// GradientExtractor turns per-slice header metadata into normalized
// per-volume diffusion vectors and b-values. Scanner vendors encode this
// metadata differently (standard tags, private tags, b-matrix); each
// variant implements this one operation and the pipeline depends only on
// the normalized output.
type GradientExtractor interface {
	ExtractDWI(headers []SliceMeta, layout Layout) (bValues []float64, dirs [][3]float64, err error)
}

// StandardExtractor reads the standard DICOM diffusion tags, DiffusionBValue
// (0018,9087) and DiffusionGradientOrientation (0018,9089), from the first
// slice of each volume. Directions are normalized to unit length; gradients
// shorter than SmallGradientThreshold are treated as baseline.
type StandardExtractor struct {
	SmallGradientThreshold float64
}

// ExtractDWI implements GradientExtractor for standards-conformant series.
// It requires a per-file slice stack: a multi-frame file keeps its
// diffusion metadata in vendor-private structures and needs either a
// vendor extractor or a gradient override file.
func (e *StandardExtractor) ExtractDWI(headers []SliceMeta, layout Layout) ([]float64, [][3]float64, error) {
	if layout.NVolume <= 0 {
		return nil, nil, fmt.Errorf("volume layout not established before gradient extraction")
	}
	if len(headers) < layout.NSlice {
		return nil, nil, fmt.Errorf("multi-frame series carries no per-slice diffusion tags; supply a gradient override file")
	}

	bValues := make([]float64, layout.NVolume)
	dirs := make([][3]float64, layout.NVolume)
	for k := 0; k < layout.NVolume; k++ {
		// In a slice-interleaved series the first NVolume files cover one
		// slice location across every volume; in a volume-major series the
		// volumes start every SlicesPerVolume files.
		idx := k * layout.SlicesPerVolume
		if layout.Interleaved {
			idx = k
		}
		h := headers[idx]

		b, ok := h.DiffusionBValue()
		if !ok {
			// no diffusion tag at all: baseline volume
			continue
		}
		bValues[k] = b

		g, ok := h.DiffusionGradient()
		if !ok {
			continue
		}
		norm := math.Sqrt(g[0]*g[0] + g[1]*g[1] + g[2]*g[2])
		if norm <= e.SmallGradientThreshold {
			continue
		}
		dirs[k] = [3]float64{g[0] / norm, g[1] / norm, g[2] / norm}
	}
	return bValues, dirs, nil
}

// ExtractGradients runs an extractor against the loaded series and installs
// its output. For a multi-frame file the volume count is taken from the
// extractor's output length.
func (c *Converter) ExtractGradients(ex GradientExtractor) error {
	bValues, dirs, err := ex.ExtractDWI(c.headers, c.Layout())
	if err != nil {
		return err
	}
	if c.multiSliceVolume && c.nVolume == 0 {
		if err := c.SetVolumeCount(len(bValues)); err != nil {
			return err
		}
	}
	if len(bValues) != c.nVolume {
		return fmt.Errorf("extractor produced %d volumes, reconstructed %d", len(bValues), c.nVolume)
	}
	return c.SetGradients(bValues, dirs)
}
