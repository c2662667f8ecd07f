package dwi

import "errors"

// Input-integrity failures. These abort the pipeline; no partial output is
// ever written after one is raised.
var (
	// ErrUnevenSliceCount means the slice files cannot be evenly
	// partitioned into volumes.
	ErrUnevenSliceCount = errors.New("slice count not divisible by slice location count")

	// ErrGradientCountMismatch means a gradient override file declared a
	// different number of gradients than there are reconstructed volumes.
	ErrGradientCountMismatch = errors.New("number of gradients doesn't match number of volumes")

	// ErrNotNIfTIName means an FSL sidecar filename could not be derived
	// because the volume name has no recognized NIfTI extension.
	ErrNotNIfTIName = errors.New("output volume is not a recognized NIfTI filename")
)
