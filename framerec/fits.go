package framerec

import (
	"io"

	"github.com/astrogo/fitsio"
)

// writeFITS streams a single-frame fits file to w
func writeFITS(w io.Writer, metadata []fitsio.Card, buffer []uint16, width, height int) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(16, []int{width, height})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}

	// fits 16-bit images are signed; shift the unsigned camera data down.
	// the copy is unavoidable, the slice dtype cannot be punned.
	bufOut := make([]int16, len(buffer))
	for idx := 0; idx < len(buffer); idx++ {
		bufOut[idx] = int16(buffer[idx] - 32768)
	}
	err = im.Write(bufOut)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
