package acquisition

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/wil-imaging/golightsheet/generichttp"
)

// StartRequest is the JSON body for starting or previewing a run.
type StartRequest struct {
	Settings Settings `json:"settings"`
	Samples  []Sample `json:"samples"`
}

// StartResponse reports the accepted plan's shape.
type StartResponse struct {
	Steps     int     `json:"steps"`
	EstimateS float64 `json:"estimateS"`
}

// HTTPWrapper exposes the driver over HTTP: start, cancel, state, progress
// events, and a dry-run preview.
type HTTPWrapper struct {
	// Driver is the wrapped acquisition driver.
	Driver *Driver

	RouteTable generichttp.RouteTable

	// run bookkeeping lives on the wrapper so /events can replay the
	// stream to polling clients
	mu        sync.Mutex
	run       *Run
	events    []Event
	accumDone chan struct{}
}

// NewHTTPWrapper returns a wrapper with the route table pre-configured.
func NewHTTPWrapper(d *Driver) *HTTPWrapper {
	w := &HTTPWrapper{Driver: d}
	w.RouteTable = generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/start"}:   w.Start,
		{Method: http.MethodPost, Path: "/cancel"}:  w.Cancel,
		{Method: http.MethodGet, Path: "/state"}:    w.State,
		{Method: http.MethodGet, Path: "/events"}:   w.Events,
		{Method: http.MethodPost, Path: "/preview"}: w.Preview,
	}
	return w
}

// RT satisfies generichttp.HTTPer.
func (h *HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

// Start begins a new acquisition from a JSON settings+samples snapshot.
func (h *HTTPWrapper) Start(w http.ResponseWriter, r *http.Request) {
	req := StartRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	run, err := h.Driver.Start(req.Settings, req.Samples)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, ErrBusy) {
			code = http.StatusConflict
		}
		http.Error(w, err.Error(), code)
		return
	}
	// the previous run's accumulator must drain before the event list is
	// reset, or its tail would bleed into the new run's list.  the old run is
	// terminal here (the driver refused ErrBusy otherwise), so this is short.
	h.mu.Lock()
	prev := h.accumDone
	h.mu.Unlock()
	if prev != nil {
		<-prev
	}
	done := make(chan struct{})
	h.mu.Lock()
	h.run = run
	h.events = nil
	h.accumDone = done
	h.mu.Unlock()
	go func() {
		defer close(done)
		for ev := range run.Events() {
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()
		}
	}()
	resp := StartResponse{
		Steps:     len(run.Plan.Steps),
		EstimateS: run.Plan.Estimate(req.Settings).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Cancel requests cancellation of the active run.
func (h *HTTPWrapper) Cancel(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	run := h.run
	h.mu.Unlock()
	if run == nil {
		http.Error(w, "no acquisition has been started", http.StatusBadRequest)
		return
	}
	run.Cancel()
	w.WriteHeader(http.StatusOK)
}

// State reports the driver state, or the last run's terminal state once the
// driver has returned to idle.
func (h *HTTPWrapper) State(w http.ResponseWriter, r *http.Request) {
	st := h.Driver.State()
	h.mu.Lock()
	run := h.run
	h.mu.Unlock()
	if st == StateIdle && run != nil {
		st = run.State()
	}
	generichttp.GetString(func() (string, error) { return st.String(), nil })(w, r)
}

// Events returns the run's accumulated events as a JSON array.  The optional
// since query parameter skips events already seen.
func (h *HTTPWrapper) Events(w http.ResponseWriter, r *http.Request) {
	since := 0
	if q := r.URL.Query().Get("since"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		since = n
	}
	h.mu.Lock()
	evs := make([]Event, len(h.events))
	copy(evs, h.events)
	h.mu.Unlock()
	if since < 0 {
		since = 0
	}
	if since > len(evs) {
		since = len(evs)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(evs[since:])
}

// Preview validates and plans a snapshot without touching hardware,
// reporting the step count and duration estimate.
func (h *HTTPWrapper) Preview(w http.ResponseWriter, r *http.Request) {
	req := StartRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Settings.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	plan, err := BuildPlan(req.Settings, req.Samples)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := StartResponse{
		Steps:     len(plan.Steps),
		EstimateS: plan.Estimate(req.Settings).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
