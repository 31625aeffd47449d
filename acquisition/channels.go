package acquisition

// Mode is the channel sequencer's activation mode.  The two spectral flags in
// Settings are orthogonal predicates over two different capture loops; a
// sequencer is built for one loop with exactly one mode.
type Mode int

const (
	// ModeNone holds a single fixed channel for the whole loop.
	ModeNone Mode = iota

	// ModeVideo switches the channel every frame of a video capture loop.
	ModeVideo

	// ModeZStack switches the channel every step of a Z-stack capture loop.
	ModeZStack
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeVideo:
		return "video"
	case ModeZStack:
		return "z-stack"
	}
	return "unknown"
}

// defaultChannel is the fixed channel used when no spectral mode is active:
// the first configured channel, or a bare default when none are configured.
func defaultChannel(order []Channel) Channel {
	if len(order) > 0 {
		return order[0]
	}
	return Channel{Name: "default"}
}

// Sequencer yields the channel for each successive frame or Z step of one
// capture loop, cycling through the configured order when its mode is
// spectral.  The zero value is not usable; build with NewSequencer.
type Sequencer struct {
	mode  Mode
	order []Channel
	idx   int
}

// NewSequencer returns a sequencer for one capture loop.  A non-empty order
// with a spectral mode is enforced at validation time, so Next never sees an
// empty cycle.
func NewSequencer(mode Mode, order []Channel) *Sequencer {
	return &Sequencer{mode: mode, order: order}
}

// Next returns the channel for the current step and advances.  With ModeNone
// the same fixed channel is returned every call regardless of the order's
// contents.
func (sq *Sequencer) Next() Channel {
	if sq.mode == ModeNone || len(sq.order) == 0 {
		return defaultChannel(sq.order)
	}
	ch := sq.order[sq.idx]
	sq.idx = (sq.idx + 1) % len(sq.order)
	return ch
}

// Reset rewinds the cycle to the first channel, used at the top of each
// Z-stack or video pass so every pass sees the same switch sequence.
func (sq *Sequencer) Reset() {
	sq.idx = 0
}

// channelsFor returns the per-plane channel set: the full configured order
// under a spectral mode, otherwise the single fixed channel.  The planner
// sizes its inner loop from it and draws the sequence from a Sequencer.
func channelsFor(mode Mode, order []Channel) []Channel {
	if mode == ModeNone {
		return []Channel{defaultChannel(order)}
	}
	return order
}
