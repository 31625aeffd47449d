package asi

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wil-imaging/golightsheet/stage"
)

// tenthsPerMicron converts microns to the controller's native tenths-of-a-
// micron units.
const tenthsPerMicron = 10

// pollInterval is how often the busy flag is sampled while a move settles.
const pollInterval = 25 * time.Millisecond

// settleTimeout bounds how long a move or home may report busy before the
// command is abandoned.  Generous; a full-travel Z sweep takes well under it.
var settleTimeout = 2 * time.Minute

// Tiger talks to one ASI Tiger controller and implements stage.Controller.
// One connection serves the stage axes and the filter wheel card; the mutex
// serializes commands on the shared line.
type Tiger struct {
	mu  sync.Mutex
	rd  remote
	ftw *Wheel
}

// NewTiger returns a controller at addr.  addr is a device file or COM port
// when isSerial is true, else a host:port for a serial-over-TCP bridge.
func NewTiger(addr string, isSerial bool) *Tiger {
	t := &Tiger{rd: remote{addr: addr, isSerial: isSerial}}
	t.ftw = &Wheel{t: t}
	return t
}

// FilterWheel returns the wheel riding on this controller's FW card.
func (t *Tiger) FilterWheel() *Wheel {
	return t.ftw
}

// Close closes the connection to the controller.
func (t *Tiger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rd.close()
}

func (t *Tiger) command(cmd string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	resp, err := t.rd.txrx(cmd)
	if err != nil {
		return "", err
	}
	return parseReply(resp)
}

// MoveTo moves all three axes to an absolute position and blocks until the
// controller reports idle.
func (t *Tiger) MoveTo(p stage.Position) error {
	cmd := fmt.Sprintf("M X=%d Y=%d Z=%d",
		int(p.X*tenthsPerMicron),
		int(p.Y*tenthsPerMicron),
		int(p.Z*tenthsPerMicron))
	if _, err := t.command(cmd); err != nil {
		return err
	}
	return t.waitIdle()
}

// waitIdle polls the controller's busy flag until the motion completes or
// settleTimeout elapses.
func (t *Tiger) waitIdle() error {
	deadline := time.Now().Add(settleTimeout)
	for {
		resp, err := t.command("/")
		if err != nil {
			return err
		}
		if strings.HasPrefix(resp, "N") {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("asi: controller still busy after %v", settleTimeout)
		}
		time.Sleep(pollInterval)
	}
}

// Pos queries the current position of all three axes.
func (t *Tiger) Pos() (stage.Position, error) {
	resp, err := t.command("W X Y Z")
	if err != nil {
		return stage.Position{}, err
	}
	fields := strings.Fields(resp)
	if len(fields) < 3 {
		return stage.Position{}, fmt.Errorf("asi: short position reply %q", resp)
	}
	var vals [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return stage.Position{}, fmt.Errorf("asi: bad position field %q: %v", fields[i], err)
		}
		vals[i] = v / tenthsPerMicron
	}
	return stage.Position{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// SetZSpeed sets the Z axis speed.  The controller takes mm/s.
func (t *Tiger) SetZSpeed(umPerS float64) error {
	_, err := t.command(fmt.Sprintf("S Z=%.4f", umPerS/1000))
	return err
}

// Home homes all axes and blocks until the controller settles.
func (t *Tiger) Home() error {
	if _, err := t.command("! X Y Z"); err != nil {
		return err
	}
	return t.waitIdle()
}

// Wheel is the filter wheel on a Tiger FW card; it implements
// filterwheel.Wheel.
type Wheel struct {
	t *Tiger
}

// Select rotates the wheel to a filter position and waits for it to settle.
func (w *Wheel) Select(position int) error {
	if _, err := w.t.command(fmt.Sprintf("MP %d", position)); err != nil {
		return err
	}
	return w.t.waitIdle()
}

// Current queries the wheel position.
func (w *Wheel) Current() (int, error) {
	resp, err := w.t.command("MP")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return 0, fmt.Errorf("asi: bad wheel position reply %q: %v", resp, err)
	}
	return n, nil
}
