package dwi

import "log/slog"

// DetermineSliceOrder decides whether slices were acquired inferior-to-
// superior or superior-to-inferior by projecting the displacement between
// the first two slices of the same spatial stack onto the through-plane
// axis. A negative projection means superior-to-inferior.
//
// Vendors with an invariant order can skip this and call
// SetSliceOrderIS directly; ApplySliceOrder performs the matrix fixup
// either way.
func (c *Converter) DetermineSliceOrder() {
	origin0 := c.vol.Origin

	// The next slice in the same spatial stack: index 1 when the series is
	// volume-major, index NVolume when it was slice-interleaved.
	next := 0
	if len(c.headers) > 1 {
		next = 1
		if c.interleaved {
			next = c.nVolume
		}
	}
	origin1 := c.headers[next].Origin()
	slog.Debug("slice order probe", "slice0", origin0, "next", next, "slice1", origin1)

	var delta [3]float64
	for i := range delta {
		delta[i] = origin1[i] - origin0[i]
	}

	sd := c.vol.SpaceDirections()
	proj := delta[0]*sd.At(0, 2) + delta[1]*sd.At(1, 2) + delta[2]*sd.At(2, 2)
	if proj < 0 {
		c.sliceOrderIS = false
	}
}

// SetSliceOrderIS declares the stacking order statically, for scanners
// where it is a known invariant.
func (c *Converter) SetSliceOrderIS(is bool) { c.sliceOrderIS = is }

// ApplySliceOrder negates the through-plane direction column for
// superior-to-inferior acquisitions so downstream consumers always see a
// consistent frame. Inferior-to-superior volumes are left untouched.
func (c *Converter) ApplySliceOrder() {
	if c.sliceOrderIS {
		slog.Info("slice order is IS")
		return
	}
	slog.Info("slice order is SI")
	c.vol.FlipThroughPlaneAxis()
}
