package dwi

// SliceMeta exposes the per-slice DICOM fields the converter needs. The
// byte-level parsing lives behind this interface so the pipeline can be
// driven equally by a real DICOM reader or by synthetic headers in tests.
type SliceMeta interface {
	// Rows and Cols are the in-plane image dimensions.
	Rows() int
	Cols() int

	// Origin is ImagePositionPatient (0020,0032) in mm.
	Origin() [3]float64

	// Spacing is the in-plane pixel spacing plus the between-slice
	// spacing, in mm.
	Spacing() [3]float64

	// Orientation is the ImageOrientationPatient (0020,0037) sextuple:
	// the row axis cosines followed by the column axis cosines.
	Orientation() [6]float64

	// SliceLocation is the raw position string reported for this slice.
	// Slices sharing a location belong to distinct diffusion volumes.
	SliceLocation() string

	// DiffusionBValue reports the diffusion weighting (0018,9087) if
	// present.
	DiffusionBValue() (float64, bool)

	// DiffusionGradient reports the gradient orientation (0018,9089) if
	// present.
	DiffusionGradient() ([3]float64, bool)

	// Frames delivers the decoded signed 16-bit sample buffer, one frame
	// per acquired slice in this file. Single-frame files return one
	// frame; a multi-frame file returns the whole stack.
	Frames() ([][]int16, error)
}
