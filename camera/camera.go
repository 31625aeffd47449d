/*Package camera describes a standard interface for control of the acquisition camera.

The interface is deliberately small; anything beyond arming and capturing
(cooling, readout rates, AOI) belongs to the concrete driver and is configured
outside an acquisition run.
*/
package camera

import (
	"fmt"
	"time"
)

// TriggerMode selects how each exposure is started.
type TriggerMode int

const (
	// TriggerSyncReadout is free-running capture with the readout synchronized
	// to the previous exposure.  This is the default mode for continuous
	// Z-stacks, where the stage sweeps while the camera runs.
	TriggerSyncReadout TriggerMode = iota

	// TriggerEdge starts each exposure on a discrete hardware edge, typically
	// produced by the stage at fixed position intervals.  Exposure and motion
	// are hardware-synchronized per frame in this mode.
	TriggerEdge

	// TriggerLightSheet is light-sheet readout mode, where the sensor rows are
	// read out in step with the illumination sheet.
	TriggerLightSheet
)

func (tm TriggerMode) String() string {
	switch tm {
	case TriggerSyncReadout:
		return "sync-readout"
	case TriggerEdge:
		return "edge"
	case TriggerLightSheet:
		return "light-sheet"
	}
	return fmt.Sprintf("TriggerMode(%d)", int(tm))
}

// Frame is a single captured image.  The data is a 1D slice strided by the
// frame width.
type Frame struct {
	Data   []uint16
	Width  int
	Height int

	// Timestamp is when the driver received the frame, not when the exposure
	// started.
	Timestamp time.Time
}

// Camera describes a camera capable of armed, triggered capture.
type Camera interface {
	// Arm readies the camera with an exposure time and trigger mode.  It may
	// have side effects in the driver (buffer allocation, sensor mode
	// switches) and should be called once before a capture series.
	Arm(exposure time.Duration, tm TriggerMode) error

	// Capture acquires one frame and blocks until it is available or the
	// hardware reports an error.
	Capture() (Frame, error)
}
