// Package sim contains in-memory implementations of the hardware interfaces
// with configurable latency and scripted failure injection.  They back the
// server's mock mode and the deterministic driver tests.
package sim

import (
	"errors"
	"sync"
	"time"

	"github.com/wil-imaging/golightsheet/camera"
	"github.com/wil-imaging/golightsheet/stage"
)

// ErrInjected is the default error produced by a scripted failure.
var ErrInjected = errors.New("sim: injected failure")

// failAt returns true when the op counter has reached the scripted failure.
// at is 1-based; 0 disables injection.
func failAt(at, count int) bool {
	return at > 0 && count == at
}

// Stage is a simulated three axis stage.
type Stage struct {
	// Latency is added to every move.
	Latency time.Duration

	// FailAt makes the FailAt-th MoveTo return Err (1-based, 0 = never).
	FailAt int
	Err    error

	mu    sync.Mutex
	pos   stage.Position
	speed float64
	moves int
}

// MoveTo moves the simulated stage.
func (s *Stage) MoveTo(p stage.Position) error {
	time.Sleep(s.Latency)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves++
	if failAt(s.FailAt, s.moves) {
		return s.errOr()
	}
	s.pos = p
	return nil
}

// Pos returns the simulated position.
func (s *Stage) Pos() (stage.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}

// SetZSpeed records the scan speed.
func (s *Stage) SetZSpeed(umPerS float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = umPerS
	return nil
}

// Home moves to the origin.
func (s *Stage) Home() error {
	return s.MoveTo(stage.Position{})
}

// Moves reports how many MoveTo calls have been issued.
func (s *Stage) Moves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves
}

func (s *Stage) errOr() error {
	if s.Err != nil {
		return s.Err
	}
	return ErrInjected
}

// Camera is a simulated camera producing deterministic gradient frames.
type Camera struct {
	// Width and Height default to 32x32 when zero.
	Width  int
	Height int

	// Latency is added to every capture on top of the armed exposure.
	Latency time.Duration

	// FailAt makes the FailAt-th Capture return Err (1-based, 0 = never).
	FailAt int
	Err    error

	mu       sync.Mutex
	exposure time.Duration
	mode     camera.TriggerMode
	captures int
}

// Arm records the exposure and trigger mode.
func (c *Camera) Arm(exposure time.Duration, tm camera.TriggerMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exposure = exposure
	c.mode = tm
	return nil
}

// Capture produces one frame after sleeping out the exposure.  The first
// pixel carries the capture ordinal so tests can check save ordering.
func (c *Camera) Capture() (camera.Frame, error) {
	c.mu.Lock()
	exp := c.exposure + c.Latency
	c.captures++
	n := c.captures
	fail := failAt(c.FailAt, n)
	c.mu.Unlock()

	time.Sleep(exp)
	if fail {
		if c.Err != nil {
			return camera.Frame{}, c.Err
		}
		return camera.Frame{}, ErrInjected
	}

	w, h := c.Width, c.Height
	if w == 0 {
		w = 32
	}
	if h == 0 {
		h = 32
	}
	data := make([]uint16, w*h)
	for i := range data {
		data[i] = uint16(i % 4096)
	}
	data[0] = uint16(n)
	return camera.Frame{Data: data, Width: w, Height: h, Timestamp: time.Now()}, nil
}

// Captures reports how many frames have been requested.
func (c *Camera) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// Wheel is a simulated filter wheel.
type Wheel struct {
	Latency time.Duration

	// FailAt makes the FailAt-th Select return Err (1-based, 0 = never).
	FailAt int
	Err    error

	mu      sync.Mutex
	pos     int
	selects int
	history []int
}

// Select rotates the simulated wheel.
func (w *Wheel) Select(position int) error {
	time.Sleep(w.Latency)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selects++
	if failAt(w.FailAt, w.selects) {
		if w.Err != nil {
			return w.Err
		}
		return ErrInjected
	}
	w.pos = position
	w.history = append(w.history, position)
	return nil
}

// Current returns the wheel position.
func (w *Wheel) Current() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos, nil
}

// History returns the sequence of selected positions.
func (w *Wheel) History() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, len(w.history))
	copy(out, w.history)
	return out
}
