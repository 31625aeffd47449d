/*Package acquisition contains the sequencing and timing core of the
light-sheet controller: settings validation, channel sequencing, loop order
planning, and the driver state machine that walks a plan against the
stage/camera/filter hardware.
*/
package acquisition

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wil-imaging/golightsheet/camera"
)

// SupportedSpeeds is the set of stage speeds (um/s) selectable for Z-stacks.
var SupportedSpeeds = []float64{15, 30}

// Channel identifies one spectral channel: a display name and the emission
// filter wheel position that realizes it.
type Channel struct {
	Name   string `json:"name" yaml:"name"`
	Filter int    `json:"filter" yaml:"filter"`
}

// Order is the nesting priority between the time-point loop and the sample loop.
type Order int

const (
	// OrderTimeSamp iterates time points outermost: every sample is imaged
	// before the next time point begins.  The default.
	OrderTimeSamp Order = iota

	// OrderSampTime runs a complete time series for each sample before
	// advancing to the next sample.
	OrderSampTime
)

func (o Order) String() string {
	switch o {
	case OrderTimeSamp:
		return "time_samp"
	case OrderSampTime:
		return "samp_time"
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

// ParseOrder converts "time_samp" or "samp_time" into an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "time_samp", "":
		return OrderTimeSamp, nil
	case "samp_time":
		return OrderSampTime, nil
	}
	return OrderTimeSamp, fmt.Errorf("unknown acquisition order %q", s)
}

// MarshalJSON encodes the order as its string name.
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes the order from its string name.
func (o *Order) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseOrder(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// UnmarshalYAML decodes the order from its string name.
func (o *Order) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseOrder(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Settings is the immutable per-run snapshot of operator intent.  It is
// assembled by the caller (UI or config file), validated once at run start,
// and never mutated while a run is in progress.
type Settings struct {
	// TimePoints is the number of time points; 1 means a single pass.
	TimePoints int `json:"timePoints" yaml:"timePoints"`

	// TimePointIntervalS is the scheduled spacing between time points in
	// seconds.  Zero means back to back.
	TimePointIntervalS float64 `json:"timePointIntervalS" yaml:"timePointIntervalS"`

	// Order selects time-first or sample-first loop nesting.
	Order Order `json:"order" yaml:"order"`

	// ZStackExposureMs is the camera exposure per Z-stack frame in milliseconds.
	ZStackExposureMs float64 `json:"zStackExposureMs" yaml:"zStackExposureMs"`

	// StageSpeedUmPerS is the Z scan speed, one of SupportedSpeeds.
	StageSpeedUmPerS float64 `json:"stageSpeedUmPerS" yaml:"stageSpeedUmPerS"`

	// SpectralZStack switches the channel on every Z step instead of holding
	// one channel per pass.  Much slower than a plain Z-stack.
	SpectralZStack bool `json:"spectralZStack" yaml:"spectralZStack"`

	// SpectralVideo switches the channel on every frame in video capture loops.
	SpectralVideo bool `json:"spectralVideo" yaml:"spectralVideo"`

	// EdgeTrigger arms the camera in edge trigger mode, hardware-synchronizing
	// exposure with stage position edges.
	EdgeTrigger bool `json:"edgeTrigger" yaml:"edgeTrigger"`

	// LSRM enables light-sheet readout mode on the camera.
	LSRM bool `json:"lsrm" yaml:"lsrm"`

	// ChannelOrder is the filter-switch sequence.  Order is significant.
	ChannelOrder []Channel `json:"channelOrder" yaml:"channelOrder"`

	// SavePath is the primary save destination root.
	SavePath string `json:"savePath" yaml:"savePath"`

	// SecondSaveEnabled turns on the secondary destination.
	SecondSaveEnabled bool `json:"secondSaveEnabled" yaml:"secondSaveEnabled"`

	// SecondSavePath is the secondary destination root, set exactly when
	// SecondSaveEnabled is true.
	SecondSavePath string `json:"secondSavePath" yaml:"secondSavePath"`

	// Researcher is recorded in run metadata.
	Researcher string `json:"researcher" yaml:"researcher"`
}

// Validate checks the snapshot for internal consistency and timing
// feasibility.  A violation is reported, never silently clamped; the run
// must not start.
func (s Settings) Validate() error {
	if s.TimePoints < 1 {
		return ConfigurationError{Field: "timePoints", Err: fmt.Errorf("must be >= 1, got %d", s.TimePoints)}
	}
	if s.ZStackExposureMs <= 0 {
		return ConfigurationError{Field: "zStackExposureMs", Err: fmt.Errorf("must be positive, got %v", s.ZStackExposureMs)}
	}
	supported := false
	for _, v := range SupportedSpeeds {
		if s.StageSpeedUmPerS == v {
			supported = true
			break
		}
	}
	if !supported {
		return ConfigurationError{Field: "stageSpeedUmPerS", Err: ErrUnsupportedStageSpeed}
	}
	if s.SpectralZStack && s.SpectralVideo {
		return ConfigurationError{Field: "spectral", Err: ErrSpectralModeConflict}
	}
	if (s.SpectralZStack || s.SpectralVideo) && len(s.ChannelOrder) == 0 {
		return ConfigurationError{Field: "channelOrder", Err: ErrEmptyChannelOrder}
	}
	// Continuous scan feasibility: with sync readout the camera free-runs
	// while the stage sweeps, so the exposure must fit within the time the
	// stage spends traversing one micron-scale trigger interval.  Expressed
	// as a product to stay exact; equivalent to exposureMs <= 1000/speed.
	// Edge trigger hardware-paces each frame and is exempt.  Stepped
	// (spectral) Z-stacks settle the stage per slice and are also exempt.
	if !s.SpectralZStack && !s.EdgeTrigger {
		if s.ZStackExposureMs*s.StageSpeedUmPerS > 1000 {
			return ConfigurationError{Field: "zStackExposureMs", Err: ErrExceedsStageSpeedLimit}
		}
	}
	if s.SavePath == "" {
		return ConfigurationError{Field: "savePath", Err: fmt.Errorf("must be set")}
	}
	if s.SecondSaveEnabled != (s.SecondSavePath != "") {
		return ConfigurationError{Field: "secondSavePath", Err: ErrSecondPathMismatch}
	}
	return nil
}

// Exposure returns the Z-stack exposure as a duration.
func (s Settings) Exposure() time.Duration {
	return time.Duration(s.ZStackExposureMs * float64(time.Millisecond))
}

// Interval returns the time point interval as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.TimePointIntervalS * float64(time.Second))
}

// TriggerMode maps the snapshot's flags onto a camera trigger mode.  LSRM
// takes precedence over edge trigger, matching the hardware's capability
// ladder.
func (s Settings) TriggerMode() camera.TriggerMode {
	switch {
	case s.LSRM:
		return camera.TriggerLightSheet
	case s.EdgeTrigger:
		return camera.TriggerEdge
	default:
		return camera.TriggerSyncReadout
	}
}

// ZStackMode returns the channel sequencer mode for Z-stack capture loops.
func (s Settings) ZStackMode() Mode {
	if s.SpectralZStack {
		return ModeZStack
	}
	return ModeNone
}

// VideoMode returns the channel sequencer mode for video capture loops.
func (s Settings) VideoMode() Mode {
	if s.SpectralVideo {
		return ModeVideo
	}
	return ModeNone
}
