package acquisition

import (
	"errors"
	"fmt"
)

// Sentinel validation errors.  They are wrapped in a ConfigurationError by
// Validate so callers can test with errors.Is.
var (
	// ErrExceedsStageSpeedLimit means the Z-stack exposure is too long for
	// the selected stage speed in continuous scan mode.
	ErrExceedsStageSpeedLimit = errors.New("z-stack exposure exceeds the stage speed limit")

	// ErrEmptyChannelOrder means a spectral mode is enabled with no channels.
	ErrEmptyChannelOrder = errors.New("channel order is empty with a spectral mode enabled")

	// ErrSpectralModeConflict means both spectral video and spectral Z-stack
	// were requested; the modes are mutually exclusive.
	ErrSpectralModeConflict = errors.New("spectral video and spectral z-stack are mutually exclusive")

	// ErrUnsupportedStageSpeed means the stage speed is not one of SupportedSpeeds.
	ErrUnsupportedStageSpeed = errors.New("stage speed is not in the supported speed list")

	// ErrSecondPathMismatch means the secondary save path and its enable flag disagree.
	ErrSecondPathMismatch = errors.New("second save path must be set exactly when enabled")

	// ErrEmptyPlan means planning produced no steps.
	ErrEmptyPlan = errors.New("acquisition plan contains no steps")

	// ErrBusy means a run is already in progress.
	ErrBusy = errors.New("acquisition already in progress")
)

// ConfigurationError is an invalid-settings error.  It is always fatal before
// the run starts and is never retried.
type ConfigurationError struct {
	// Field names the offending setting.
	Field string

	Err error
}

func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", ce.Field, ce.Err)
}

func (ce ConfigurationError) Unwrap() error { return ce.Err }

// HardwareError is a stage, camera, or filter command failure during a run.
// It is fatal to the run; saves already dispatched are allowed to finish.
type HardwareError struct {
	// Op is the hardware command that failed, e.g. "stage move" or "capture".
	Op string

	// StepIndex is the plan index of the failing step, -1 before the first step.
	StepIndex int

	// Channel is the active channel name at the time of the failure.
	Channel string

	Err error
}

func (he HardwareError) Error() string {
	return fmt.Sprintf("hardware: %s failed at step %d (channel %s): %v", he.Op, he.StepIndex, he.Channel, he.Err)
}

func (he HardwareError) Unwrap() error { return he.Err }
