package framerec

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"
)

func ExampleStepPath() {
	subdir, name := StepPath(2, 1, 5, "GFP")
	fmt.Println(subdir + "/" + name)
	// Output: t0002/fish01/z0005_GFP.fits
}

func TestStepPath(t *testing.T) {
	subdir, name := StepPath(2, 1, 5, "GFP")
	if subdir != "t0002/fish01" {
		t.Errorf("subdir: got %q", subdir)
	}
	if name != "z0005_GFP.fits" {
		t.Errorf("name: got %q", name)
	}
}

func TestRecorderWritesReadableFITS(t *testing.T) {
	root := t.TempDir()
	r := NewRecorder(root)
	subdir, name := StepPath(0, 0, 3, "RFP")
	f := Frame{
		Data:   []uint16{0, 1, 2, 3, 4, 5},
		Width:  3,
		Height: 2,
		Subdir: subdir,
		Name:   name,
		Cards: []fitsio.Card{
			{Name: "CHANNEL", Value: "RFP", Comment: "spectral channel"},
			{Name: "ZSLICE", Value: 3, Comment: "z plane index"},
		},
	}
	if err := r.Write(f); err != nil {
		t.Fatal(err)
	}

	fid, err := os.Open(filepath.Join(root, subdir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer fid.Close()
	fits, err := fitsio.Open(fid)
	if err != nil {
		t.Fatal(err)
	}
	defer fits.Close()
	hdr := fits.HDU(0).Header()
	if got := hdr.Axes(); len(got) != 2 || got[0] != 3 || got[1] != 2 {
		t.Errorf("axes: got %v want [3 2]", got)
	}
	card := hdr.Get("CHANNEL")
	if card == nil || card.Value != "RFP" {
		t.Errorf("CHANNEL card: got %+v", card)
	}
}

func TestRecorderProbe(t *testing.T) {
	if err := NewRecorder(t.TempDir()).Probe(); err != nil {
		t.Errorf("probe of writable root failed: %v", err)
	}

	// a plain file cannot be a destination root
	fn := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(fn, []byte("x"), 0666); err != nil {
		t.Fatal(err)
	}
	if err := NewRecorder(fn).Probe(); err == nil {
		t.Error("probe of a file-as-root succeeded")
	}
}
