package dwi

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jpfielding/dwiconv.go/pkg/nifti"
)

// niftiExtensionIndex locates a recognized NIfTI suffix in a volume name so
// sidecar names can be derived from it.
func niftiExtensionIndex(name string) (int, error) {
	for _, ext := range []string{".nii.gz", ".nii"} {
		if pos := strings.Index(name, ext); pos >= 0 {
			return pos, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrNotNIfTIName, name)
}

// WriteFSL writes the FSL-style file set: a 4D NIfTI volume plus .bval and
// .bvec sidecar tables. Empty sidecar paths are derived from the volume
// name by swapping its NIfTI extension; a volume name without one is a
// configuration error when derivation is needed.
//
// The 3D buffer is reinterpreted as 4D without copying sample order, which
// is valid because de-interleaved volumes are contiguous per-volume blocks.
func (c *Converter) WriteFSL(volumeName, bvalPath, bvecPath string) error {
	v := c.vol
	nVolumes := c.nVolume
	if nVolumes <= 0 {
		return fmt.Errorf("no volumes reconstructed")
	}

	slicesPerVolume := v.Slices / nVolumes
	data := v.Data
	if slicesPerVolume*nVolumes != v.Slices {
		slog.Warn("slices in volume not evenly divisible by the number of volumes, truncating",
			"slices", v.Slices, "volumes", nVolumes, "leftover", v.Slices%nVolumes)
		data = data[:v.Cols*v.Rows*slicesPerVolume*nVolumes]
	}

	img := &nifti.Image{
		Dim:     [4]int{v.Cols, v.Rows, slicesPerVolume, nVolumes},
		PixDim:  [4]float64{v.Spacing[0], v.Spacing[1], v.Spacing[2], 1.0},
		Descrip: "dwiconv",
		Data:    data,
	}
	// NIfTI stores RAS: negate the L and P rows of the LPS transform.
	sd := v.SpaceDirections()
	for i := 0; i < 3; i++ {
		sign := 1.0
		if i < 2 {
			sign = -1.0
		}
		for j := 0; j < 3; j++ {
			img.Srow[i][j] = sign * sd.At(i, j)
		}
		img.Srow[i][3] = sign * v.Origin[i]
	}

	if err := img.WriteFile(volumeName); err != nil {
		return err
	}

	if bvalPath == "" || bvecPath == "" {
		pos, err := niftiExtensionIndex(volumeName)
		if err != nil {
			return err
		}
		if bvalPath == "" {
			bvalPath = volumeName[:pos] + ".bval"
		}
		if bvecPath == "" {
			bvecPath = volumeName[:pos] + ".bvec"
		}
	}

	if err := c.writeBValueFile(bvalPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", bvalPath, err)
	}
	if err := c.writeBVectorFile(bvecPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", bvecPath, err)
	}
	return nil
}

func (c *Converter) writeBValueFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, b := range c.bValues {
		if _, err := fmt.Fprintf(w, "%s\n", strconv.FormatFloat(b, 'g', -1, 64)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (c *Converter) writeBVectorFile(path string) error {
	gradients, err := c.ScaledGradients()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, g := range gradients {
		if _, err := fmt.Fprintf(w, "%s %s %s\n",
			strconv.FormatFloat(g[0], 'g', -1, 64),
			strconv.FormatFloat(g[1], 'g', -1, 64),
			strconv.FormatFloat(g[2], 'g', -1, 64)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
