package framerec

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"
)

// DefaultQueueDepth is the per-destination in-flight frame limit when the
// caller does not specify one.
const DefaultQueueDepth = 8

// WriteError records a failed write to one destination.  It carries enough
// context to reproduce the failure.
type WriteError struct {
	// Dest is "primary" or "secondary".
	Dest string

	// Path is the frame's relative path under the destination root.
	Path string

	Err error
}

func (we WriteError) Error() string {
	return fmt.Sprintf("framerec: %s write of %s failed: %v", we.Dest, we.Path, we.Err)
}

func (we WriteError) Unwrap() error { return we.Err }

// Dispatcher fans captured frames out to a primary and an optional secondary
// destination.  Each destination has its own bounded FIFO queue and worker
// goroutine, so save completion order is preserved per destination but not
// across destinations.
//
// A primary failure is fatal: it is retained and reported by Err, and later
// frames to the primary are dropped.  Secondary failures are retried with an
// exponential backoff and then surfaced on Warnings; they never stop the run.
type Dispatcher struct {
	primary   *destination
	secondary *destination

	// SecondaryRetryLimit bounds the total time spent retrying one secondary
	// write.  Mutate only before the first Dispatch.
	SecondaryRetryLimit time.Duration

	warnings chan WriteError
	wg       sync.WaitGroup

	mu  sync.Mutex
	err error

	log zerolog.Logger
}

type destination struct {
	name string
	sink Sink
	jobs chan Frame
}

// NewDispatcher returns a dispatcher writing to primary and, when secondary
// is non-nil, to secondary as well.  depth bounds the number of queued frames
// per destination; depth < 1 uses DefaultQueueDepth.  Dispatch blocks when a
// queue is full, which is the backpressure that keeps a slow disk from
// growing memory without bound.
func NewDispatcher(primary, secondary Sink, depth int, log zerolog.Logger) *Dispatcher {
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	d := &Dispatcher{
		primary:             &destination{name: "primary", sink: primary, jobs: make(chan Frame, depth)},
		SecondaryRetryLimit: 2 * time.Second,
		warnings:            make(chan WriteError, depth),
		log:                 log,
	}
	if secondary != nil {
		d.secondary = &destination{name: "secondary", sink: secondary, jobs: make(chan Frame, depth)}
	}
	d.wg.Add(1)
	go d.primaryWorker()
	if d.secondary != nil {
		d.wg.Add(1)
		go d.secondaryWorker()
	}
	return d
}

// Dispatch submits a frame for persistence to every configured destination.
// It blocks only when a destination queue is full.
func (d *Dispatcher) Dispatch(f Frame) {
	d.primary.jobs <- f
	if d.secondary != nil {
		d.secondary.jobs <- f
	}
}

// Err returns the first primary write failure, or nil.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Warnings yields non-fatal write failures (secondary destination only).
// The channel is closed by Close after the workers drain.
func (d *Dispatcher) Warnings() <-chan WriteError {
	return d.warnings
}

// Close stops accepting frames, waits for all queued writes to terminate,
// then closes the warnings channel.  Dispatch must not be called after Close.
func (d *Dispatcher) Close() {
	close(d.primary.jobs)
	if d.secondary != nil {
		close(d.secondary.jobs)
	}
	d.wg.Wait()
	close(d.warnings)
}

func (d *Dispatcher) primaryWorker() {
	defer d.wg.Done()
	for f := range d.primary.jobs {
		d.mu.Lock()
		failed := d.err != nil
		d.mu.Unlock()
		if failed {
			// frame is permanently dropped; the driver halts at the next
			// step boundary once it observes Err
			continue
		}
		if err := d.primary.sink.Write(f); err != nil {
			we := WriteError{Dest: d.primary.name, Path: path.Join(f.Subdir, f.Name), Err: err}
			d.log.Error().Str("dest", we.Dest).Str("path", we.Path).Err(err).Msg("primary write failed")
			d.mu.Lock()
			d.err = we
			d.mu.Unlock()
		}
	}
}

func (d *Dispatcher) secondaryWorker() {
	defer d.wg.Done()
	for f := range d.secondary.jobs {
		op := func() error { return d.secondary.sink.Write(f) }
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 50 * time.Millisecond
		bo.MaxElapsedTime = d.SecondaryRetryLimit
		if err := backoff.Retry(op, bo); err != nil {
			we := WriteError{Dest: d.secondary.name, Path: path.Join(f.Subdir, f.Name), Err: err}
			d.log.Warn().Str("dest", we.Dest).Str("path", we.Path).Err(err).Msg("secondary write failed")
			select {
			case d.warnings <- we:
			default:
				// warning consumer has fallen behind; the log line above is
				// the durable record
			}
		}
	}
}
