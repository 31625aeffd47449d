// Package framerec contains the frame recorder and the save dispatcher used
// to persist captured frames to one or two destinations without stalling
// acquisition.
package framerec

import (
	"fmt"

	"github.com/astrogo/fitsio"
)

// Frame is one captured image addressed for persistence.  Ownership of the
// pixel data transfers to the dispatcher at Dispatch and is released once
// every destination has finished with it.
type Frame struct {
	// Data is the strided pixel buffer, Width values per row.
	Data   []uint16
	Width  int
	Height int

	// Subdir is the directory for this frame relative to a destination root,
	// e.g. "t0002/fish01".
	Subdir string

	// Name is the file name, e.g. "z0005_GFP.fits".
	Name string

	// Cards are FITS header cards recorded with the image.
	Cards []fitsio.Card
}

// StepPath returns the conventional relative directory and file name for a
// frame at the given acquisition coordinates.  The layout follows
// root/t<timepoint>/fish<sample>/z<plane>_<channel>.fits.
func StepPath(timePoint, sample, zPlane int, channel string) (subdir, name string) {
	subdir = fmt.Sprintf("t%04d/fish%02d", timePoint, sample)
	name = fmt.Sprintf("z%04d_%s.fits", zPlane, channel)
	return subdir, name
}
