package acquisition

import "time"

// Step is one fully specified unit of work: image one Z plane of one sample
// at one time point in one channel.  Steps are immutable once planned and
// are consumed exactly once, in order.
type Step struct {
	TimePoint int     `json:"timePoint"`
	Sample    int     `json:"sample"`
	ZPlane    int     `json:"zPlane"`
	Channel   Channel `json:"channel"`
}

// Plan is the fully materialized, ordered step sequence for one run.  It is
// built before execution begins, so the total step count and elapsed-time
// estimate are knowable up front.  The plan is owned by the driver for the
// run's duration and discarded at completion or abort.
type Plan struct {
	Order Order
	Steps []Step
}

// BuildPlan expands the cross product of time points, samples, Z planes, and
// channels into the ordered step sequence for the selected loop order.
// Samples marked Skip keep their index but produce no steps.  Within one
// (time point, sample, plane), channel order follows the configured order
// exactly; there is no reordering.
//
// A plan with zero steps returns ErrEmptyPlan: a run with nothing to do is an
// error, not a silent success.
func BuildPlan(s Settings, samples []Sample) (Plan, error) {
	perPlane := len(channelsFor(s.ZStackMode(), s.ChannelOrder))
	sq := NewSequencer(s.ZStackMode(), s.ChannelOrder)
	p := Plan{Order: s.Order}

	stack := func(t, i int, samp Sample) {
		// every stack pass sees the same switch sequence from the top
		sq.Reset()
		for z := 0; z < samp.Planes(); z++ {
			for c := 0; c < perPlane; c++ {
				p.Steps = append(p.Steps, Step{TimePoint: t, Sample: i, ZPlane: z, Channel: sq.Next()})
			}
		}
	}

	switch s.Order {
	case OrderSampTime:
		for i, samp := range samples {
			if samp.Skip {
				continue
			}
			for t := 0; t < s.TimePoints; t++ {
				stack(t, i, samp)
			}
		}
	default: // OrderTimeSamp
		for t := 0; t < s.TimePoints; t++ {
			for i, samp := range samples {
				if samp.Skip {
					continue
				}
				stack(t, i, samp)
			}
		}
	}

	if len(p.Steps) == 0 {
		return Plan{}, ConfigurationError{Field: "plan", Err: ErrEmptyPlan}
	}
	return p, nil
}

// Estimate returns a lower bound on the run's wall time: exposure for every
// step plus the scheduled interval between consecutive time points of each
// series.  Stage settling and filter switches are not modeled.
func (p Plan) Estimate(s Settings) time.Duration {
	d := time.Duration(len(p.Steps)) * s.Exposure()
	gaps := s.TimePoints - 1
	if gaps > 0 && s.TimePointIntervalS > 0 {
		series := 1
		if p.Order == OrderSampTime {
			series = p.sampleCount()
		}
		d += time.Duration(series*gaps) * s.Interval()
	}
	return d
}

func (p Plan) sampleCount() int {
	seen := map[int]struct{}{}
	for _, st := range p.Steps {
		seen[st.Sample] = struct{}{}
	}
	return len(seen)
}
