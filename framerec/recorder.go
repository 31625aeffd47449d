package framerec

import (
	"os"
	"path/filepath"
)

// Sink is a destination which can persist frames.
type Sink interface {
	// Write persists a frame.  Implementations are called from a single
	// goroutine per destination and need not be thread safe.
	Write(Frame) error
}

// Recorder writes frames as FITS files under a root folder, creating the
// per-frame subdirectories as needed.  It is not thread safe.
type Recorder struct {
	// Root is the destination root path.
	Root string
}

// NewRecorder returns a recorder anchored at root.
func NewRecorder(root string) *Recorder {
	return &Recorder{Root: root}
}

// Write implements Sink and writes one frame to disk.
func (r *Recorder) Write(f Frame) error {
	fldr := filepath.Join(r.Root, f.Subdir)
	if err := os.MkdirAll(fldr, 0777); err != nil {
		return err
	}
	fid, err := os.Create(filepath.Join(fldr, f.Name))
	if err != nil {
		return err
	}
	defer fid.Close()
	return writeFITS(fid, f.Cards, f.Data, f.Width, f.Height)
}

// Probe verifies the destination is reachable and writable by creating and
// removing a marker file under the root.  Used before a run starts so an
// unreachable destination is a configuration error, not a per-frame surprise.
func (r *Recorder) Probe() error {
	if err := os.MkdirAll(r.Root, 0777); err != nil {
		return err
	}
	fn := filepath.Join(r.Root, ".framerec-probe")
	fid, err := os.Create(fn)
	if err != nil {
		return err
	}
	fid.Close()
	return os.Remove(fn)
}
