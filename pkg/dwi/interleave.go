package dwi

import (
	"fmt"
	"log/slog"
)

// resolveInterleave counts the distinct slice locations to establish
// SlicesPerVolume, verifies the series partitions evenly into volumes, and
// detects slice-major ordering. A slice-major series is permuted in place
// into volume-major order.
//
// Detection compares the location indicators of the first two slices only:
// if they report the same location, all slices for one location are grouped
// together and the series is slice-interleaved. Pathological acquisitions
// with irregular location ordering can defeat this heuristic; it matches
// what scanners actually emit.
func (c *Converter) resolveInterleave() error {
	// A hash of the slice locations gives a reliable count even when the
	// SliceLocation tag itself is absent.
	counts := make(map[string]int, c.nSlice)
	order := make([]string, 0, c.nSlice)
	locations := make([]string, c.nSlice)
	for k, h := range c.headers {
		loc := h.SliceLocation()
		if counts[loc] == 0 {
			order = append(order, loc)
		}
		counts[loc]++
		locations[k] = loc
	}

	if c.nSlice%len(counts) != 0 {
		return fmt.Errorf("missing DICOM slice files: number of slice files (%d) not evenly divisible by the number of slice locations (%d): %w",
			c.nSlice, len(counts), ErrUnevenSliceCount)
	}

	c.slicesPerVolume = len(counts)
	c.nVolume = c.nSlice / c.slicesPerVolume

	// indicator[k] = rank of slice k's location in first-seen order
	rank := make(map[string]int, len(order))
	for i, loc := range order {
		rank[loc] = i
	}
	indicator := make([]int, c.nSlice)
	for k, loc := range locations {
		indicator[k] = rank[loc]
	}

	// A single location, or a single slice, cannot be interleaved.
	if c.nSlice < 2 || c.slicesPerVolume <= 1 {
		return nil
	}

	if indicator[0] != indicator[1] {
		slog.Info("DICOM images are ordered in a volume interleaving way")
		return nil
	}

	slog.Info("DICOM images are ordered in a slice interleaving way",
		"slicesPerVolume", c.slicesPerVolume, "volumes", c.nVolume)
	c.interleaved = true
	return c.vol.Deinterleave(c.slicesPerVolume)
}
