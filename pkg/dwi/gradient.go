package dwi

import (
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// MaxBValue returns the largest b-value in the list, or 0 for an empty or
// all-baseline acquisition.
func MaxBValue(bValues []float64) float64 {
	max := 0.0
	for _, b := range bValues {
		if b > max {
			max = b
		}
	}
	return max
}

// ScaleByBValues scales each unit gradient direction by
// sqrt(bValue/maxBValue), so the vector norm encodes the diffusion
// attenuation strength relative to the nominal b-value. When maxBValue is 0
// every vector collapses to zero.
func ScaleByBValues(dirs [][3]float64, bValues []float64, maxBValue float64) [][3]float64 {
	scaled := make([][3]float64, len(dirs))
	for k := range dirs {
		factor := 0.0
		if maxBValue > 0 {
			factor = math.Sqrt(bValues[k] / maxBValue)
		}
		for i := 0; i < 3; i++ {
			scaled[k][i] = dirs[k][i] * factor
		}
	}
	return scaled
}

// RotateByFrame multiplies each vector by the inverse of the measurement
// frame. Oblique acquisitions on some scanners report gradient directions
// already rotated by ImageOrientationPatient; rotating by the inverse
// recovers the prescribed protocol directions.
func RotateByFrame(vecs [][3]float64, frame *mat.Dense) ([][3]float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(frame); err != nil {
		return nil, fmt.Errorf("measurement frame is not invertible: %w", err)
	}
	out := make([][3]float64, len(vecs))
	for k, v := range vecs {
		rotated := mat.NewVecDense(3, nil)
		rotated.MulVec(&inv, mat.NewVecDense(3, []float64{v[0], v[1], v[2]}))
		out[k] = [3]float64{rotated.AtVec(0), rotated.AtVec(1), rotated.AtVec(2)}
	}
	return out, nil
}

// ScaledGradients returns the final emitted gradient table: b-value-scaled
// and, when the identity measurement frame was requested, rotated by the
// inverse frame. Length and order match the b-value list.
func (c *Converter) ScaledGradients() ([][3]float64, error) {
	scaled := ScaleByBValues(c.gradients, c.bValues, MaxBValue(c.bValues))
	if !c.useIdentityMeasurementFrame {
		return scaled, nil
	}
	return RotateByFrame(scaled, c.measurementFrame)
}

// ReadGradientOverride parses an external gradient file:
//
//	<num_gradients>
//	x y z
//	x y z
//	...
//
// The declared count must equal the number of reconstructed volumes.
// Short data truncates the read at end of input.
func ReadGradientOverride(r io.Reader, nVolumes int) ([][3]float64, error) {
	var count int
	if _, err := fmt.Fscan(r, &count); err != nil {
		return nil, fmt.Errorf("failed to read gradient count: %w", err)
	}
	if count != nVolumes {
		return nil, fmt.Errorf("%w: file declares %d, reconstructed %d",
			ErrGradientCountMismatch, count, nVolumes)
	}
	var vecs [][3]float64
	for {
		var v [3]float64
		n, err := fmt.Fscan(r, &v[0], &v[1], &v[2])
		if n < 3 {
			break
		}
		vecs = append(vecs, v)
		if err != nil {
			break
		}
	}
	return vecs, nil
}

// GradientOverrideCount reads just the declared gradient count from an
// override file. Multi-frame inputs use it to establish the volume count
// before the override itself is applied.
func GradientOverrideCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open gradient file: %w", err)
	}
	defer f.Close()
	var count int
	if _, err := fmt.Fscan(f, &count); err != nil {
		return 0, fmt.Errorf("failed to read gradient count: %w", err)
	}
	return count, nil
}

// ApplyGradientOverride replaces the extracted gradient table with vectors
// from an external file. On any error the existing table is left untouched.
// B-value scaling and frame rotation still apply at write time.
func (c *Converter) ApplyGradientOverride(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open gradient file: %w", err)
	}
	defer f.Close()
	vecs, err := ReadGradientOverride(f, c.nVolume)
	if err != nil {
		return err
	}
	c.gradients = vecs
	return nil
}

// SetGradients installs extracted per-volume b-values and unit gradient
// directions. The two lists must be parallel.
func (c *Converter) SetGradients(bValues []float64, dirs [][3]float64) error {
	if len(bValues) != len(dirs) {
		return fmt.Errorf("b-value list (%d) and gradient list (%d) differ in length",
			len(bValues), len(dirs))
	}
	c.bValues = bValues
	c.gradients = dirs
	return nil
}
