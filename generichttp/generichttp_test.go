package generichttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi"
)

func TestSubMuxSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"acquisition", "/acquisition/*"},
		{"/acquisition", "/acquisition/*"},
		{"/acquisition/", "/acquisition/*"},
		{"/acquisition/*", "/acquisition/*"},
	}
	for _, tc := range cases {
		if got := SubMuxSanitize(tc.in); got != tc.want {
			t.Errorf("SubMuxSanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRouteTableBindAndEndpoints(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	rt := RouteTable{
		{Method: http.MethodGet, Path: "/state"}:  ok,
		{Method: http.MethodPost, Path: "/start"}: ok,
	}
	eps := rt.Endpoints()
	sort.Strings(eps)
	want := []string{"GET /state", "POST /start"}
	for i := range want {
		if eps[i] != want[i] {
			t.Errorf("endpoint %d: got %q want %q", i, eps[i], want[i])
		}
	}

	r := chi.NewRouter()
	rt.Bind(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /state: status %d", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/start") // wrong method
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /start: status %d, want 405", resp.StatusCode)
	}
}

func TestScalarHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	GetString(func() (string, error) { return "running", nil })(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	st := StrT{}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Str != "running" {
		t.Errorf("GetString: got %q", st.Str)
	}

	rec = httptest.NewRecorder()
	GetInt(func() (int, error) { return 42, nil })(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	it := IntT{}
	if err := json.NewDecoder(rec.Body).Decode(&it); err != nil {
		t.Fatal(err)
	}
	if it.Int != 42 {
		t.Errorf("GetInt: got %d", it.Int)
	}

	var got int
	body, _ := json.Marshal(IntT{Int: 7})
	rec = httptest.NewRecorder()
	SetInt(func(i int) error { got = i; return nil })(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	if rec.Code != http.StatusOK || got != 7 {
		t.Errorf("SetInt: code %d value %d", rec.Code, got)
	}

	var flag bool
	body, _ = json.Marshal(BoolT{Bool: true})
	rec = httptest.NewRecorder()
	SetBool(func(b bool) error { flag = b; return nil })(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	if rec.Code != http.StatusOK || !flag {
		t.Errorf("SetBool: code %d value %v", rec.Code, flag)
	}
}
