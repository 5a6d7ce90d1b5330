package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleettrack/internal/fix"
	"fleettrack/internal/gps"
	"fleettrack/internal/props"
	"fleettrack/internal/tracker"
)

type fakeGPS struct{ snap gps.Snapshot }

func (f fakeGPS) Snapshot() gps.Snapshot { return f.snap }

type fakeTracker struct{ stats tracker.Stats }

func (f fakeTracker) Stats() tracker.Stats { return f.stats }

type fakeQueue struct {
	n       int
	dropped uint64
}

func (f fakeQueue) Len() int        { return f.n }
func (f fakeQueue) Dropped() uint64 { return f.dropped }

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStatusEndpoint(t *testing.T) {
	last := fix.New()
	last.Timestamp = 1_700_000_000
	last.Lat, last.Lon = 45.5, -122.5

	st := tracker.Stats{Processed: 12, Gated: 2, LastFix: last}
	st.Motion.InMotion = true
	st.Odometer.Meters = 4200

	s := NewStatus("truck-1")
	s.GPS = fakeGPS{snap: gps.Snapshot{Enabled: true, State: "reading", Source: "nmea", Satellites: 8}}
	s.Tracker = fakeTracker{stats: st}
	s.Queue = fakeQueue{n: 3, dropped: 1}

	rr := do(t, Handler(Options{Status: s}), http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var got StatusSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Service != "fleettrack" || got.DeviceID != "truck-1" {
		t.Fatalf("service=%q device=%q", got.Service, got.DeviceID)
	}
	if got.GPS == nil || got.GPS.State != "reading" || got.GPS.Satellites != 8 {
		t.Fatalf("gps=%+v", got.GPS)
	}
	if got.Tracker == nil || !got.Tracker.InMotion || got.Tracker.OdometerMeters != 4200 || got.Tracker.Processed != 12 {
		t.Fatalf("tracker=%+v", got.Tracker)
	}
	if got.Tracker.LastFixUTC != "2023-11-14T22:13:20Z" {
		t.Fatalf("last_fix_utc=%q", got.Tracker.LastFixUTC)
	}
	if got.Queue == nil || got.Queue.Queued != 3 || got.Queue.Dropped != 1 {
		t.Fatalf("queue=%+v", got.Queue)
	}
}

func TestStatusEndpoint_NilSourcesOmitted(t *testing.T) {
	rr := do(t, Handler(Options{}), http.MethodGet, "/api/status", "")
	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"gps", "tracker", "queue"} {
		if _, ok := got[k]; ok {
			t.Fatalf("unexpected key %q in %v", k, got)
		}
	}
}

func TestStatusEndpoint_MethodNotAllowed(t *testing.T) {
	rr := do(t, Handler(Options{}), http.MethodPost, "/api/status", "{}")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if rr.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("allow=%q", rr.Header().Get("Allow"))
	}
}

func TestPropsEndpoint_GetAndSet(t *testing.T) {
	store := props.NewMemory(map[string]string{"motion.start": "2"})
	h := Handler(Options{Props: store})

	rr := do(t, h, http.MethodGet, "/api/props", "")
	var got PropsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Props["motion.start"] != "2" {
		t.Fatalf("props=%v", got.Props)
	}

	rr = do(t, h, http.MethodPost, "/api/props", `{"set":{"motion.stop":"120","motion.start":"3"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if strings.Join(got.Keys, ",") != "motion.start,motion.stop" {
		t.Fatalf("keys=%v", got.Keys)
	}
	if store.String("motion.stop", "") != "120" || store.Int("motion.start", 0) != 3 {
		t.Fatalf("store=%v", store.Snapshot())
	}
	if store.Saves() != 1 {
		t.Fatalf("saves=%d want 1", store.Saves())
	}
}

func TestPropsEndpoint_RejectsBadInput(t *testing.T) {
	store := props.NewMemory(nil)
	h := Handler(Options{Props: store})

	for _, body := range []string{`not json`, `{"set":{}}`, `{"other":1}`, `{"set":{" ":"x"}}`} {
		rr := do(t, h, http.MethodPost, "/api/props", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d want %d", body, rr.Code, http.StatusBadRequest)
		}
	}
	if store.Saves() != 0 {
		t.Fatalf("saves=%d want 0", store.Saves())
	}
	if rr := do(t, h, http.MethodDelete, "/api/props", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

type failingStore struct{ *props.Memory }

func (failingStore) Save() error { return errors.New("disk full") }

func TestPropsEndpoint_SaveFailure(t *testing.T) {
	h := Handler(Options{Props: failingStore{props.NewMemory(nil)}})
	rr := do(t, h, http.MethodPost, "/api/props", `{"set":{"a":"1"}}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok_metric 1\n")
	})
	rr := do(t, Handler(Options{Metrics: metrics}), http.MethodGet, "/metrics", "")
	if rr.Body.String() != "ok_metric 1\n" {
		t.Fatalf("body=%q", rr.Body.String())
	}
	if rr := do(t, Handler(Options{}), http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}

func TestNewServer_Timeouts(t *testing.T) {
	srv := NewServer(http.NotFoundHandler())
	if srv.ReadHeaderTimeout != 5*time.Second || srv.IdleTimeout != 30*time.Second {
		t.Fatalf("server=%+v", srv)
	}
}
