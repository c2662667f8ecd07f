// Package nifti writes 4D NIfTI-1 volumes of signed 16-bit samples.
// It covers exactly what a DWI conversion needs: the fixed 348-byte
// header, an sform affine, and raw little-endian sample data, optionally
// gzip-compressed for ".nii.gz" names.
package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// NIfTI-1 constants used by the writer.
const (
	dtSignedShort = 4 // DT_SIGNED_SHORT
	unitsMM       = 2 // NIFTI_UNITS_MM
	unitsSec      = 8 // NIFTI_UNITS_SEC
	xformScanner  = 1 // NIFTI_XFORM_SCANNER_ANAT

	headerSize = 348
	voxOffset  = 352 // header + 4-byte extension flag
)

// Image is a 4D volume prepared for writing. Dim and PixDim are ordered
// x, y, z, t. Srow holds the 3x4 sform affine mapping voxel indices to
// scanner coordinates in RAS space.
type Image struct {
	Dim     [4]int
	PixDim  [4]float64
	Srow    [3][4]float64
	Descrip string
	Data    []int16
}

// header is the on-disk NIfTI-1 header layout, 348 bytes, little endian.
type header struct {
	SizeofHdr      int32
	DataTypeUnused [10]byte
	DBName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte
	Dim            [8]int16
	IntentP1       float32
	IntentP2       float32
	IntentP3       float32
	IntentCode     int16
	Datatype       int16
	Bitpix         int16
	SliceStart     int16
	Pixdim         [8]float32
	VoxOffset      float32
	SclSlope       float32
	SclInter       float32
	SliceEnd       int16
	SliceCode      byte
	XyztUnits      byte
	CalMax         float32
	CalMin         float32
	SliceDuration  float32
	Toffset        float32
	Glmax          int32
	Glmin          int32
	Descrip        [80]byte
	AuxFile        [24]byte
	QformCode      int16
	SformCode      int16
	QuaternB       float32
	QuaternC       float32
	QuaternD       float32
	QoffsetX       float32
	QoffsetY       float32
	QoffsetZ       float32
	SrowX          [4]float32
	SrowY          [4]float32
	SrowZ          [4]float32
	IntentName     [16]byte
	Magic          [4]byte
}

func (img *Image) makeHeader() (*header, error) {
	nVox := 1
	for _, d := range img.Dim {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dimension %v", img.Dim)
		}
		nVox *= d
	}
	if len(img.Data) != nVox {
		return nil, fmt.Errorf("data has %d samples, dimensions imply %d", len(img.Data), nVox)
	}

	h := &header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  dtSignedShort,
		Bitpix:    16,
		VoxOffset: voxOffset,
		SclSlope:  1,
		XyztUnits: unitsMM | unitsSec,
		SformCode: xformScanner,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	h.Dim[0] = 4
	for i, d := range img.Dim {
		h.Dim[i+1] = int16(d)
	}
	for i := 5; i < 8; i++ {
		h.Dim[i] = 1
	}
	h.Pixdim[0] = 1 // qfac
	for i, p := range img.PixDim {
		h.Pixdim[i+1] = float32(p)
	}
	for j := 0; j < 4; j++ {
		h.SrowX[j] = float32(img.Srow[0][j])
		h.SrowY[j] = float32(img.Srow[1][j])
		h.SrowZ[j] = float32(img.Srow[2][j])
	}
	copy(h.Descrip[:], img.Descrip)
	return h, nil
}

// Write serializes the image to w.
func (img *Image) Write(w io.Writer) error {
	h, err := img.makeHeader()
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	// no extensions
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, img.Data)
}

// WriteFile writes the image to path, gzipping when the name ends in ".gz".
func (img *Image) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(bw)
		w = gz
	}
	if err := img.Write(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
