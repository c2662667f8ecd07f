package dwi

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Volume represents a 3D volume of signed 16-bit samples together with the
// geometry reported by the scanner: voxel spacing in mm, the position of the
// first voxel in patient space, and a 3x3 direction-cosine matrix whose
// columns are the unit axes of the image grid in LPS space.
type Volume struct {
	// Dimensions
	Cols   int // X
	Rows   int // Y
	Slices int // Z (number of slices across all acquired volumes)

	// Voxel spacing in mm
	Spacing [3]float64

	// Image position of first slice
	Origin [3]float64

	// Direction cosines, column k = unit direction of axis k
	Direction *mat.Dense

	// Sample data (row-major order, slice-by-slice)
	Data []int16
}

// NewVolume creates a new Volume with the specified dimensions
func NewVolume(cols, rows, slices int) *Volume {
	return &Volume{
		Cols:      cols,
		Rows:      rows,
		Slices:    slices,
		Spacing:   [3]float64{1.0, 1.0, 1.0},
		Direction: identity3(),
		Data:      make([]int16, cols*rows*slices),
	}
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// index maps an (x, y, z) coordinate onto the flat sample buffer using the
// volume's strides. z is the slowest-varying axis.
func (v *Volume) index(x, y, z int) int {
	return z*v.Cols*v.Rows + y*v.Cols + x
}

// At returns the sample value at (x, y, z)
func (v *Volume) At(x, y, z int) int16 {
	if x < 0 || x >= v.Cols || y < 0 || y >= v.Rows || z < 0 || z >= v.Slices {
		return 0
	}
	return v.Data[v.index(x, y, z)]
}

// SetAt sets the sample value at (x, y, z)
func (v *Volume) SetAt(x, y, z int, val int16) {
	if x < 0 || x >= v.Cols || y < 0 || y >= v.Rows || z < 0 || z >= v.Slices {
		return
	}
	v.Data[v.index(x, y, z)] = val
}

// SetDirectionFromOrientation reconstructs the full direction-cosine matrix
// from the six in-plane direction cosines reported by ImageOrientationPatient
// (0020,0037). DICOM only reports the row and column axes; the through-plane
// axis is their cross product, which yields a right-handed LPS frame.
func (v *Volume) SetDirectionFromOrientation(dirCos [6]float64) {
	d := mat.NewDense(3, 3, nil)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			d.Set(j, i, dirCos[i*3+j])
		}
	}
	d.Set(0, 2, d.At(1, 0)*d.At(2, 1)-d.At(2, 0)*d.At(1, 1))
	d.Set(1, 2, d.At(2, 0)*d.At(0, 1)-d.At(0, 0)*d.At(2, 1))
	d.Set(2, 2, d.At(0, 0)*d.At(1, 1)-d.At(1, 0)*d.At(0, 1))
	v.Direction = d
}

// SpacingMatrix returns the diagonal matrix of voxel spacings.
func (v *Volume) SpacingMatrix() *mat.Dense {
	s := mat.NewDense(3, 3, nil)
	s.Set(0, 0, v.Spacing[0])
	s.Set(1, 1, v.Spacing[1])
	s.Set(2, 2, v.Spacing[2])
	return s
}

// SpaceDirections returns Direction * SpacingMatrix: each column is an image
// axis scaled to physical length, the form both output formats record.
func (v *Volume) SpaceDirections() *mat.Dense {
	var sd mat.Dense
	sd.Mul(v.Direction, v.SpacingMatrix())
	return &sd
}

// FlipThroughPlaneAxis negates the third direction column. Called when the
// acquisition stacked slices superior-to-inferior so that consumers always
// see an inferior-to-superior through-plane axis.
func (v *Volume) FlipThroughPlaneAxis() {
	for i := 0; i < 3; i++ {
		v.Direction.Set(i, 2, -v.Direction.At(i, 2))
	}
}

// Deinterleave permutes the slice axis from slice-major order (all slices
// for location 0, then all for location 1, ...) into volume-major order
// (all slices of volume 0, then volume 1, ...). The permutation is applied
// independently to each (x, y) column of samples:
//
//	out[k*slicesPerVolume + m] = in[m*nVolumes + k]
//
// for volume index k and within-volume slice index m.
func (v *Volume) Deinterleave(slicesPerVolume int) error {
	if slicesPerVolume <= 0 || v.Slices%slicesPerVolume != 0 {
		return fmt.Errorf("cannot deinterleave %d slices into volumes of %d", v.Slices, slicesPerVolume)
	}
	nVolumes := v.Slices / slicesPerVolume
	in := make([]int16, v.Slices)
	out := make([]int16, v.Slices)
	for y := 0; y < v.Rows; y++ {
		for x := 0; x < v.Cols; x++ {
			// extract all values in one "column"
			for k := 0; k < v.Slices; k++ {
				in[k] = v.Data[v.index(x, y, k)]
			}
			// permute
			for k := 0; k < nVolumes; k++ {
				for m := 0; m < slicesPerVolume; m++ {
					out[k*slicesPerVolume+m] = in[m*nVolumes+k]
				}
			}
			// put things back in order
			for k := 0; k < v.Slices; k++ {
				v.Data[v.index(x, y, k)] = out[k]
			}
		}
	}
	return nil
}

// MinMax returns the minimum and maximum sample values
func (v *Volume) MinMax() (min, max int16) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min, max = v.Data[0], v.Data[0]
	for _, val := range v.Data {
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	return
}
