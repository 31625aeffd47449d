package acquisition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wil-imaging/golightsheet/framerec"
	"github.com/wil-imaging/golightsheet/sim"
)

func simDriver() (*Driver, *sim.Stage, *sim.Camera, *sim.Wheel) {
	st := &sim.Stage{}
	cam := &sim.Camera{Width: 8, Height: 8}
	wh := &sim.Wheel{}
	return New(st, cam, wh, zerolog.Nop()), st, cam, wh
}

func runSettings(t *testing.T) Settings {
	s := validSettings()
	s.ZStackExposureMs = 1
	s.SavePath = t.TempDir()
	return s
}

func drain(run *Run) []Event {
	evs := []Event{}
	for ev := range run.Events() {
		evs = append(evs, ev)
	}
	return evs
}

func TestDriverCompletesRun(t *testing.T) {
	d, _, cam, wh := simDriver()
	s := runSettings(t)
	s.TimePoints = 2
	samples := []Sample{
		{Name: "fish0", X: 10, Y: 20, ZStart: 0, ZEnd: 10, ZStepUm: 10},
		{Name: "fish1", X: 30, Y: 40, ZStart: 0, ZEnd: 10, ZStepUm: 10},
	}

	run, err := d.Start(s, samples)
	if err != nil {
		t.Fatal(err)
	}
	evs := drain(run)
	if err := run.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.State() != StateCompleted {
		t.Fatalf("terminal state: got %v", run.State())
	}
	if d.State() != StateIdle {
		t.Errorf("driver did not return to idle: %v", d.State())
	}

	steps := 0
	for _, ev := range evs {
		if ev.Kind == EventStepCompleted {
			steps++
		}
	}
	if steps != 8 {
		t.Errorf("step events: got %d want 8", steps)
	}
	if last := evs[len(evs)-1]; last.Kind != EventCompleted {
		t.Errorf("last event: got %v want completed", last.Kind)
	}
	if cam.Captures() != 8 {
		t.Errorf("captures: got %d want 8", cam.Captures())
	}
	// single channel: exactly one filter selection for the whole run
	if got := wh.History(); len(got) != 1 {
		t.Errorf("filter selections: got %v want one", got)
	}

	for _, rel := range []string{
		"t0000/fish00/z0000_GFP.fits",
		"t0001/fish01/z0001_GFP.fits",
	} {
		if _, err := os.Stat(filepath.Join(s.SavePath, rel)); err != nil {
			t.Errorf("missing output %s: %v", rel, err)
		}
	}
}

func TestDriverCancel(t *testing.T) {
	d, _, _, _ := simDriver()
	s := runSettings(t)
	s.ZStackExposureMs = 10
	samples := []Sample{{Name: "fish0", ZStart: 0, ZEnd: 490, ZStepUm: 10}}

	run, err := d.Start(s, samples)
	if err != nil {
		t.Fatal(err)
	}
	<-run.Events() // let at least one step land
	run.Cancel()
	evs := []Event{}
	for ev := range run.Events() {
		evs = append(evs, ev)
	}
	if run.State() != StateAborted {
		t.Fatalf("terminal state: got %v want aborted", run.State())
	}
	if err := run.Wait(); err != nil {
		t.Errorf("aborted run should carry no error, got %v", err)
	}
	if last := evs[len(evs)-1]; last.Kind != EventAborted {
		t.Errorf("last event: got %v want aborted", last.Kind)
	}
	if got := len(evs); got >= 49 {
		t.Errorf("cancellation did not stop the run early: %d events after the first", got)
	}
	if d.State() != StateIdle {
		t.Errorf("driver did not return to idle: %v", d.State())
	}
}

func TestDriverHardwareFailure(t *testing.T) {
	d, _, cam, _ := simDriver()
	cam.FailAt = 3
	s := runSettings(t)
	samples := []Sample{{Name: "fish0", ZStart: 0, ZEnd: 40, ZStepUm: 10}}

	run, err := d.Start(s, samples)
	if err != nil {
		t.Fatal(err)
	}
	drain(run)
	err = run.Wait()
	if run.State() != StateFailed {
		t.Fatalf("terminal state: got %v want failed", run.State())
	}
	var he HardwareError
	if !errors.As(err, &he) {
		t.Fatalf("want HardwareError, got %v", err)
	}
	if he.Op != "capture" || he.StepIndex != 2 {
		t.Errorf("failure context: got op=%q step=%d", he.Op, he.StepIndex)
	}
	if !errors.Is(err, sim.ErrInjected) {
		t.Errorf("cause not preserved: %v", err)
	}
}

func TestDriverBusy(t *testing.T) {
	d, _, _, _ := simDriver()
	s := runSettings(t)
	s.ZStackExposureMs = 10
	samples := []Sample{{Name: "fish0", ZStart: 0, ZEnd: 190, ZStepUm: 10}}

	run, err := d.Start(s, samples)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Start(s, samples); !errors.Is(err, ErrBusy) {
		t.Errorf("second start: want ErrBusy, got %v", err)
	}
	run.Cancel()
	drain(run)
	run.Wait()
}

func TestDriverRejectsInvalidSettings(t *testing.T) {
	d, _, _, _ := simDriver()
	s := runSettings(t)
	s.StageSpeedUmPerS = 20

	run, err := d.Start(s, []Sample{{ZStart: 0, ZEnd: 10, ZStepUm: 10}})
	if !errors.Is(err, ErrUnsupportedStageSpeed) {
		t.Fatalf("want ErrUnsupportedStageSpeed, got %v", err)
	}
	if run.State() != StateFailed {
		t.Errorf("refused run state: got %v want failed", run.State())
	}
	evs := drain(run)
	if len(evs) != 1 || evs[0].Kind != EventFailed {
		t.Errorf("refused run events: got %v", evs)
	}
	if d.State() != StateIdle {
		t.Errorf("driver not idle after refusal: %v", d.State())
	}
}

// alwaysFail is a framerec sink whose every write fails.
type alwaysFail struct{}

func (alwaysFail) Write(framerec.Frame) error {
	return errors.New("disk on fire")
}

func TestDriverSecondaryFailureIsWarning(t *testing.T) {
	d, _, _, _ := simDriver()
	s := runSettings(t)
	d.NewSink = func(s Settings) (Sink, error) {
		disp := framerec.NewDispatcher(framerec.NewRecorder(s.SavePath), alwaysFail{}, 4, zerolog.Nop())
		disp.SecondaryRetryLimit = 5 * time.Millisecond
		return disp, nil
	}
	samples := []Sample{{Name: "fish0", ZStart: 0, ZEnd: 10, ZStepUm: 10}}

	run, err := d.Start(s, samples)
	if err != nil {
		t.Fatal(err)
	}
	evs := drain(run)
	if run.State() != StateCompleted {
		t.Fatalf("secondary failures must not fail the run: %v (%v)", run.State(), run.Err())
	}
	warnings := 0
	for _, ev := range evs {
		if ev.Kind == EventWarning {
			warnings++
		}
	}
	if warnings != 2 {
		t.Errorf("warning events: got %d want 2", warnings)
	}
}

func TestDriverPrimaryFailureIsFatal(t *testing.T) {
	d, _, _, _ := simDriver()
	s := runSettings(t)
	d.NewSink = func(Settings) (Sink, error) {
		return framerec.NewDispatcher(alwaysFail{}, nil, 4, zerolog.Nop()), nil
	}
	samples := []Sample{{Name: "fish0", ZStart: 0, ZEnd: 10, ZStepUm: 10}}

	run, err := d.Start(s, samples)
	if err != nil {
		t.Fatal(err)
	}
	drain(run)
	err = run.Wait()
	if run.State() != StateFailed {
		t.Fatalf("terminal state: got %v want failed", run.State())
	}
	var we framerec.WriteError
	if !errors.As(err, &we) {
		t.Errorf("want WriteError, got %v", err)
	}
}
