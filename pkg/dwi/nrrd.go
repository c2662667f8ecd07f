package dwi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// formatFloat renders a float in scientific notation with the given number
// of significant digits. The serializers use 17 digits, enough to
// round-trip any float64 exactly.
func formatFloat(v float64, sigDigits int) string {
	return strconv.FormatFloat(v, 'e', sigDigits-1, 64)
}

const headerPrecision = 17

// MakeFileComment builds the free-form comment block stamped into the NRRD
// header, recording the converter version and the options that shaped the
// gradient table.
func (c *Converter) MakeFileComment(version string, smallGradientThreshold float64) string {
	var b strings.Builder
	b.WriteString("#\n#\n")
	fmt.Fprintf(&b, "# This file was created by dwiconv version %s\n", version)
	b.WriteString("# https://github.com/jpfielding/dwiconv.go\n")
	b.WriteString("# part of the dwiconv package.\n")
	b.WriteString("# Command line options:\n")
	fmt.Fprintf(&b, "# --smallGradientThreshold %g\n", smallGradientThreshold)
	if c.useIdentityMeasurementFrame {
		b.WriteString("# --useIdentityMeasurementFrame\n")
	}
	if c.useBMatrixGradients {
		b.WriteString("# --useBMatrixGradientDirections\n")
	}
	return b.String()
}

// WriteNRRD serializes the volume and gradient table as a DWMRI NRRD file.
// A ".nhdr" header name selects the split header+raw layout, with the
// sample data written to a ".raw" sibling; any other name produces a
// single self-contained file with the raw samples inline after the header.
func (c *Converter) WriteNRRD(headerName, comment string) error {
	extensionPos := strings.Index(headerName, ".nhdr")
	singleFile := extensionPos < 0

	var dataName string
	if !singleFile {
		dataName = headerName[:extensionPos] + ".raw"
	}

	f, err := os.Create(headerName)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", headerName, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := c.writeNRRDHeader(w, comment, dataName); err != nil {
		return fmt.Errorf("failed to write %s: %w", headerName, err)
	}

	if singleFile {
		if err := c.writeRawSamples(w); err != nil {
			return fmt.Errorf("failed to write %s: %w", headerName, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", headerName, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", headerName, err)
	}

	if !singleFile {
		if err := c.writeRawFile(dataName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) writeNRRDHeader(w io.Writer, comment, dataName string) error {
	ff := func(v float64) string { return formatFloat(v, headerPrecision) }
	v := c.vol

	fmt.Fprintf(w, "NRRD0005\n")
	io.WriteString(w, comment)

	if dataName != "" {
		fmt.Fprintf(w, "content: exists(%s,0)\n", filepath.Base(dataName))
	}
	fmt.Fprintf(w, "type: short\n")
	fmt.Fprintf(w, "dimension: 4\n")
	fmt.Fprintf(w, "space: %s\n", c.space)
	fmt.Fprintf(w, "sizes: %d %d %d %d\n", v.Cols, v.Rows, c.slicesPerVolume, c.nVolume)
	fmt.Fprintf(w, "thicknesses:  NaN  NaN %s NaN\n", ff(v.Spacing[2]))

	sd := v.SpaceDirections()
	fmt.Fprintf(w, "space directions: (%s,%s,%s) (%s,%s,%s) (%s,%s,%s) none\n",
		ff(sd.At(0, 0)), ff(sd.At(1, 0)), ff(sd.At(2, 0)),
		ff(sd.At(0, 1)), ff(sd.At(1, 1)), ff(sd.At(2, 1)),
		ff(sd.At(0, 2)), ff(sd.At(1, 2)), ff(sd.At(2, 2)))
	fmt.Fprintf(w, "centerings: cell cell cell ???\n")
	fmt.Fprintf(w, "kinds: space space space list\n")
	fmt.Fprintf(w, "endian: little\n")
	fmt.Fprintf(w, "encoding: raw\n")
	fmt.Fprintf(w, "space units: \"mm\" \"mm\" \"mm\"\n")
	fmt.Fprintf(w, "space origin: (%s,%s,%s) \n",
		ff(v.Origin[0]), ff(v.Origin[1]), ff(v.Origin[2]))
	if dataName != "" {
		fmt.Fprintf(w, "data file: %s\n", filepath.Base(dataName))
	}

	frame := c.measurementFrame
	if c.useIdentityMeasurementFrame {
		frame = identity3()
	}
	fmt.Fprintf(w, "measurement frame: (%s,%s,%s) (%s,%s,%s) (%s,%s,%s)\n",
		ff(frame.At(0, 0)), ff(frame.At(1, 0)), ff(frame.At(2, 0)),
		ff(frame.At(0, 1)), ff(frame.At(1, 1)), ff(frame.At(2, 1)),
		ff(frame.At(0, 2)), ff(frame.At(1, 2)), ff(frame.At(2, 2)))

	fmt.Fprintf(w, "modality:=DWMRI\n")
	// the nominal b-value, i.e. the largest one
	fmt.Fprintf(w, "DWMRI_b-value:=%s\n", ff(MaxBValue(c.bValues)))

	gradients, err := c.ScaledGradients()
	if err != nil {
		return err
	}
	for k, g := range gradients {
		fmt.Fprintf(w, "DWMRI_gradient_%04d:=%s   %s   %s\n", k, ff(g[0]), ff(g[1]), ff(g[2]))
	}

	_, err = io.WriteString(w, "\n")
	return err
}

// writeRawSamples streams the voxel buffer as little-endian 16-bit samples.
func (c *Converter) writeRawSamples(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, c.vol.Data)
}

func (c *Converter) writeRawFile(dataName string) error {
	f, err := os.Create(dataName)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dataName, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := c.writeRawSamples(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", dataName, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dataName, err)
	}
	return f.Close()
}
