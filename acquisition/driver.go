package acquisition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wil-imaging/golightsheet/camera"
	"github.com/wil-imaging/golightsheet/filterwheel"
	"github.com/wil-imaging/golightsheet/framerec"
	"github.com/wil-imaging/golightsheet/stage"
)

// State is the driver's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateValidating
	StatePlanning
	StateRunning

	// terminal states; a new run requires a fresh start
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StatePlanning:
		return "planning"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Sink is the save pipeline consumed by the driver.  *framerec.Dispatcher
// satisfies it.
type Sink interface {
	// Dispatch submits a frame; blocks only under backpressure.
	Dispatch(framerec.Frame)

	// Err returns the first fatal (primary destination) write failure.
	Err() error

	// Warnings yields non-fatal write failures; closed by Close.
	Warnings() <-chan framerec.WriteError

	// Close waits for all submitted writes to terminate.
	Close()
}

// Driver walks an acquisition plan against the hardware.  It owns the stage,
// camera, and filter wheel exclusively while a run is in progress; no other
// component may issue hardware commands concurrently.
type Driver struct {
	Stage  stage.Controller
	Camera camera.Camera
	Wheel  filterwheel.Wheel

	// QueueDepth bounds in-flight saves per destination; 0 uses the
	// framerec default.
	QueueDepth int

	// NewSink overrides save-pipeline construction.  When nil, FITS
	// recorders rooted at the settings' save paths are used.  Tests inject
	// failing sinks through this hook.
	NewSink func(Settings) (Sink, error)

	Log zerolog.Logger

	mu    sync.Mutex
	state State
	run   *Run
}

// New returns a driver over the given hardware.
func New(st stage.Controller, cam camera.Camera, wh filterwheel.Wheel, log zerolog.Logger) *Driver {
	return &Driver{Stage: st, Camera: cam, Wheel: wh, Log: log}
}

// State reports the driver's current state; StateIdle when no run is active.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Cancel requests cancellation of the active run, if any.  Cancellation is
// honored at the next step boundary.
func (d *Driver) Cancel() {
	d.mu.Lock()
	r := d.run
	d.mu.Unlock()
	if r != nil {
		r.Cancel()
	}
}

// Run is the handle for one acquisition.  Its event stream terminates with
// exactly one of Completed, Aborted, or Failed, after which the channel is
// closed.
type Run struct {
	// Plan is the materialized step sequence for the run.
	Plan Plan

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

// Events returns the run's progress stream.  The channel is buffered to the
// run's full event budget, so the run never blocks on a slow consumer.
func (r *Run) Events() <-chan Event { return r.events }

// Cancel requests cooperative cancellation.  In-flight hardware commands and
// already-queued saves finish before the run enters Aborted.
func (r *Run) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

// State returns the run's current (or terminal) state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the run's terminal error, nil unless the state is Failed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the run terminates and returns its error.
func (r *Run) Wait() error {
	<-r.done
	return r.Err()
}

func (r *Run) emit(ev Event) {
	r.events <- ev
}

func (r *Run) setState(s State, err error) {
	r.mu.Lock()
	r.state = s
	r.err = err
	r.mu.Unlock()
}

// newFailedRun is a run that failed before any step executed; its event
// stream holds the single Failed event.
func newFailedRun(err error) *Run {
	r := &Run{events: make(chan Event, 1), done: make(chan struct{})}
	r.state = StateFailed
	r.err = err
	r.events <- Event{Kind: EventFailed, Index: -1, Message: err.Error(), Time: time.Now()}
	close(r.events)
	close(r.done)
	return r
}

// Start validates the settings snapshot, plans the run, and begins executing
// it on a new goroutine.  Validation and planning failures return a terminal
// Failed run alongside the error; no steps execute.  A second Start while a
// run is active returns ErrBusy.
func (d *Driver) Start(s Settings, samples []Sample) (*Run, error) {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.state = StateValidating
	d.mu.Unlock()

	fail := func(err error) (*Run, error) {
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
		d.Log.Error().Err(err).Msg("acquisition refused")
		return newFailedRun(err), err
	}

	if err := s.Validate(); err != nil {
		return fail(err)
	}

	d.mu.Lock()
	d.state = StatePlanning
	d.mu.Unlock()

	plan, err := BuildPlan(s, samples)
	if err != nil {
		return fail(err)
	}
	newSink := d.NewSink
	if newSink == nil {
		newSink = d.defaultSink
	}
	sink, err := newSink(s)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Run{
		Plan:   plan,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, 2*len(plan.Steps)+8),
		done:   make(chan struct{}),
		state:  StateRunning,
	}

	d.mu.Lock()
	d.state = StateRunning
	d.run = r
	d.mu.Unlock()

	go d.execute(r, s, samples, sink)
	return r, nil
}

// defaultSink builds the FITS save pipeline and probes every destination, so
// an unreachable path is a configuration error before the run starts rather
// than a per-frame surprise.
func (d *Driver) defaultSink(s Settings) (Sink, error) {
	primary := framerec.NewRecorder(s.SavePath)
	if err := primary.Probe(); err != nil {
		return nil, ConfigurationError{Field: "savePath", Err: err}
	}
	var secondary framerec.Sink
	if s.SecondSaveEnabled {
		rec := framerec.NewRecorder(s.SecondSavePath)
		if err := rec.Probe(); err != nil {
			return nil, ConfigurationError{Field: "secondSavePath", Err: err}
		}
		secondary = rec
	}
	return framerec.NewDispatcher(primary, secondary, d.QueueDepth, d.Log), nil
}

func (d *Driver) execute(r *Run, s Settings, samples []Sample, sink Sink) {
	log := d.Log.With().
		Str("order", s.Order.String()).
		Int("steps", len(r.Plan.Steps)).
		Logger()
	started := time.Now()

	// forward non-fatal save failures into the event stream; FIFO per the
	// dispatcher's own ordering
	warnDone := make(chan struct{})
	go func() {
		for we := range sink.Warnings() {
			log.Warn().Str("dest", we.Dest).Str("path", we.Path).Msg("save warning")
			r.emit(Event{Kind: EventWarning, Index: -1, Message: we.Error(), Time: time.Now()})
		}
		close(warnDone)
	}()

	finish := func(st State, err error) {
		// queued saves are allowed to terminate no matter how the run ends
		sink.Close()
		<-warnDone
		if st == StateCompleted {
			if perr := sink.Err(); perr != nil {
				st, err = StateFailed, perr
			}
		}
		r.setState(st, err)
		ev := Event{Index: -1, Time: time.Now()}
		switch st {
		case StateCompleted:
			ev.Kind = EventCompleted
		case StateAborted:
			ev.Kind = EventAborted
		default:
			ev.Kind = EventFailed
			ev.Message = err.Error()
		}
		r.emit(ev)
		close(r.events)
		close(r.done)

		d.mu.Lock()
		d.state = StateIdle
		d.run = nil
		d.mu.Unlock()
		log.Info().
			Str("state", st.String()).
			Dur("elapsed", time.Since(started)).
			Msg("acquisition finished")
	}

	if err := d.Camera.Arm(s.Exposure(), s.TriggerMode()); err != nil {
		finish(StateFailed, HardwareError{Op: "camera arm", StepIndex: -1, Err: err})
		return
	}
	if err := d.Stage.SetZSpeed(s.StageSpeedUmPerS); err != nil {
		finish(StateFailed, HardwareError{Op: "stage speed", StepIndex: -1, Err: err})
		return
	}

	every := rate.Inf
	if s.TimePointIntervalS > 0 {
		every = rate.Every(s.Interval())
	}
	limiter := rate.NewLimiter(every, 1)

	cur := Step{TimePoint: -1, Sample: -1, ZPlane: -1}
	for i := range r.Plan.Steps {
		step := r.Plan.Steps[i]

		// cooperative cancellation, step boundaries only: a step is never
		// interrupted mid-flight, so no partial frames
		if r.ctx.Err() != nil {
			finish(StateAborted, nil)
			return
		}
		if err := sink.Err(); err != nil {
			finish(StateFailed, err)
			return
		}

		samp := samples[step.Sample]
		if s.Order == OrderSampTime && step.Sample != cur.Sample {
			// each sample's time series keeps its own cadence
			limiter = rate.NewLimiter(every, 1)
		}
		if step.TimePoint != cur.TimePoint || step.Sample != cur.Sample {
			if i > 0 && step.TimePoint != cur.TimePoint {
				// park at the series start before waiting out the interval
				if err := d.Stage.MoveTo(samp.Start()); err != nil {
					finish(StateFailed, HardwareError{Op: "stage park", StepIndex: i, Channel: step.Channel.Name, Err: err})
					return
				}
			}
			if step.TimePoint != cur.TimePoint {
				if err := limiter.Wait(r.ctx); err != nil {
					finish(StateAborted, nil)
					return
				}
			}
		}

		if step.Sample != cur.Sample || step.TimePoint != cur.TimePoint || step.ZPlane != cur.ZPlane {
			pos := stage.Position{X: samp.X, Y: samp.Y, Z: samp.ZAt(step.ZPlane)}
			if err := d.Stage.MoveTo(pos); err != nil {
				finish(StateFailed, HardwareError{Op: "stage move", StepIndex: i, Channel: step.Channel.Name, Err: err})
				return
			}
		}
		if i == 0 || step.Channel != cur.Channel {
			if err := d.Wheel.Select(step.Channel.Filter); err != nil {
				finish(StateFailed, HardwareError{Op: "filter select", StepIndex: i, Channel: step.Channel.Name, Err: err})
				return
			}
		}

		frame, err := d.Camera.Capture()
		if err != nil {
			finish(StateFailed, HardwareError{Op: "capture", StepIndex: i, Channel: step.Channel.Name, Err: err})
			return
		}

		// ownership of the frame transfers to the sink here; blocks at the
		// step boundary when the queue is full
		sink.Dispatch(frameFor(s, step, samp, frame))
		r.emit(Event{Kind: EventStepCompleted, Index: i, Step: &r.Plan.Steps[i], Time: time.Now()})
		cur = step
	}

	finish(StateCompleted, nil)
}

// frameFor addresses a captured frame for persistence and attaches the run
// metadata header.
func frameFor(s Settings, step Step, samp Sample, f camera.Frame) framerec.Frame {
	subdir, name := framerec.StepPath(step.TimePoint, step.Sample, step.ZPlane, step.Channel.Name)
	cards := []fitsio.Card{
		{Name: "TIMEPNT", Value: step.TimePoint, Comment: "time point index"},
		{Name: "FISHNUM", Value: step.Sample, Comment: "sample index"},
		{Name: "ZSLICE", Value: step.ZPlane, Comment: "z plane index"},
		{Name: "CHANNEL", Value: step.Channel.Name, Comment: "spectral channel"},
		{Name: "ZPOSUM", Value: samp.ZAt(step.ZPlane), Comment: "absolute z position [um]"},
		{Name: "EXPMS", Value: s.ZStackExposureMs, Comment: "exposure time [ms]"},
		{Name: "ZSPEED", Value: s.StageSpeedUmPerS, Comment: "z scan speed [um/s]"},
		{Name: "TRIGMODE", Value: s.TriggerMode().String(), Comment: "camera trigger mode"},
		{Name: "RSRCHR", Value: s.Researcher, Comment: "researcher"},
		{Name: "DATE-OBS", Value: f.Timestamp.UTC().Format(time.RFC3339), Comment: "capture time, UTC"},
	}
	return framerec.Frame{
		Data:   f.Data,
		Width:  f.Width,
		Height: f.Height,
		Subdir: subdir,
		Name:   name,
		Cards:  cards,
	}
}
