package acquisition

import (
	"errors"
	"testing"
	"time"
)

func twoSamples() []Sample {
	return []Sample{
		{Name: "fish0", X: 100, Y: 200, ZStart: 0, ZEnd: 20, ZStepUm: 10},
		{Name: "fish1", X: 300, Y: 400, ZStart: 50, ZEnd: 70, ZStepUm: 10},
	}
}

func TestBuildPlanTimeSamp(t *testing.T) {
	s := validSettings()
	s.TimePoints = 2
	plan, err := BuildPlan(s, twoSamples())
	if err != nil {
		t.Fatal(err)
	}
	// 2 tp x 2 samples x 3 planes x 1 channel
	if len(plan.Steps) != 12 {
		t.Fatalf("step count: got %d want 12", len(plan.Steps))
	}
	// every sample is imaged before the next time point begins
	wantSamples := []int{0, 0, 0, 1, 1, 1, 0, 0, 0, 1, 1, 1}
	wantTP := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	for i, st := range plan.Steps {
		if st.Sample != wantSamples[i] || st.TimePoint != wantTP[i] {
			t.Errorf("step %d: got (t%d, s%d) want (t%d, s%d)",
				i, st.TimePoint, st.Sample, wantTP[i], wantSamples[i])
		}
	}
}

func TestBuildPlanSampTime(t *testing.T) {
	s := validSettings()
	s.TimePoints = 2
	s.Order = OrderSampTime
	plan, err := BuildPlan(s, twoSamples())
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 12 {
		t.Fatalf("step count: got %d want 12", len(plan.Steps))
	}
	// sample 0's full time series completes before sample 1 starts
	lastOfZero := 0
	firstOfOne := len(plan.Steps)
	for i, st := range plan.Steps {
		if st.Sample == 0 {
			lastOfZero = i
		}
		if st.Sample == 1 && i < firstOfOne {
			firstOfOne = i
		}
	}
	if lastOfZero > firstOfOne {
		t.Errorf("sample 1 starts at step %d before sample 0 ends at %d", firstOfOne, lastOfZero)
	}
}

func TestBuildPlanSpectralChannels(t *testing.T) {
	s := validSettings()
	s.SpectralZStack = true
	s.ChannelOrder = []Channel{{Name: "GFP", Filter: 1}, {Name: "RFP", Filter: 3}}
	plan, err := BuildPlan(s, twoSamples()[:1])
	if err != nil {
		t.Fatal(err)
	}
	// 3 planes x 2 channels, channel innermost in configured order
	if len(plan.Steps) != 6 {
		t.Fatalf("step count: got %d want 6", len(plan.Steps))
	}
	want := []string{"GFP", "RFP", "GFP", "RFP", "GFP", "RFP"}
	for i, st := range plan.Steps {
		if st.Channel.Name != want[i] {
			t.Errorf("step %d: channel %s want %s", i, st.Channel.Name, want[i])
		}
	}
}

func TestBuildPlanNonSpectralSingleChannel(t *testing.T) {
	s := validSettings()
	s.ChannelOrder = []Channel{{Name: "GFP", Filter: 1}, {Name: "RFP", Filter: 3}}
	plan, err := BuildPlan(s, twoSamples()[:1])
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("step count: got %d want 3", len(plan.Steps))
	}
	for i, st := range plan.Steps {
		if st.Channel.Name != "GFP" {
			t.Errorf("step %d: got channel %s, want the first configured channel", i, st.Channel.Name)
		}
	}
}

func TestBuildPlanSkipKeepsIndices(t *testing.T) {
	samples := twoSamples()
	samples[0].Skip = true
	plan, err := BuildPlan(validSettings(), samples)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range plan.Steps {
		if st.Sample != 1 {
			t.Fatalf("skipped sample appears in plan: %+v", st)
		}
	}
}

func TestBuildPlanEmpty(t *testing.T) {
	_, err := BuildPlan(validSettings(), nil)
	if !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("no samples: want ErrEmptyPlan, got %v", err)
	}
	samples := twoSamples()
	samples[0].Skip = true
	samples[1].Skip = true
	_, err = BuildPlan(validSettings(), samples)
	if !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("all skipped: want ErrEmptyPlan, got %v", err)
	}
}

func TestEstimate(t *testing.T) {
	s := validSettings()
	s.TimePoints = 3
	s.TimePointIntervalS = 10
	plan, err := BuildPlan(s, twoSamples())
	if err != nil {
		t.Fatal(err)
	}
	// 18 steps x 20ms + 2 gaps x 10s for the single interleaved series
	want := 18*20*time.Millisecond + 20*time.Second
	if got := plan.Estimate(s); got != want {
		t.Errorf("time_samp estimate: got %v want %v", got, want)
	}

	s.Order = OrderSampTime
	plan, err = BuildPlan(s, twoSamples())
	if err != nil {
		t.Fatal(err)
	}
	// each of the 2 samples keeps its own cadence: 2 series x 2 gaps
	want = 18*20*time.Millisecond + 40*time.Second
	if got := plan.Estimate(s); got != want {
		t.Errorf("samp_time estimate: got %v want %v", got, want)
	}
}

func TestSampleGeometry(t *testing.T) {
	cases := []struct {
		descr  string
		s      Sample
		planes int
		zAt2   float64
	}{
		{"ascending", Sample{ZStart: 0, ZEnd: 20, ZStepUm: 10}, 3, 20},
		{"descending", Sample{ZStart: 100, ZEnd: 80, ZStepUm: 10}, 3, 80},
		{"non-integral span", Sample{ZStart: 0, ZEnd: 25, ZStepUm: 10}, 3, 20},
		{"single plane", Sample{ZStart: 5, ZEnd: 5, ZStepUm: 10}, 1, 0},
		{"degenerate step", Sample{ZStart: 0, ZEnd: 20, ZStepUm: 0}, 0, 0},
	}
	for _, tc := range cases {
		if got := tc.s.Planes(); got != tc.planes {
			t.Errorf("%s: planes got %d want %d", tc.descr, got, tc.planes)
		}
		if tc.planes > 2 {
			if got := tc.s.ZAt(2); got != tc.zAt2 {
				t.Errorf("%s: ZAt(2) got %v want %v", tc.descr, got, tc.zAt2)
			}
		}
	}
}
