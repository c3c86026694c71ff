package webd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/roamtrack/tripd/params"
	"github.com/tidwall/gjson"
)

func newTestWebDaemon(t *testing.T) *WebDaemon {
	t.Helper()
	restore := params.DatadirRoot
	params.DatadirRoot = t.TempDir()
	t.Cleanup(func() { params.DatadirRoot = restore })
	return NewWebDaemon(nil)
}

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://tripd.local/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestWebDaemon_status(t *testing.T) {
	d := newTestWebDaemon(t)
	req := httptest.NewRequest("GET", "http://tripd.local/v1/status", nil)
	w := httptest.NewRecorder()
	d.handleStatus(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200: %d", resp.StatusCode)
	}
	status := map[string]any{}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if _, ok := status["uptime_s"]; !ok {
		t.Error("no uptime in status")
	}
}

func TestWebDaemon_lastKnown_NoDeviceThat(t *testing.T) {
	d := newTestWebDaemon(t)
	req := httptest.NewRequest("GET", "http://tripd.local/v1/devices/ghost/last", nil)
	req = mux.SetURLVars(req, map[string]string{"device": "ghost"}) // hack
	w := httptest.NewRecorder()
	d.handleLastKnown(w, req)
	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code not 404: %d", resp.StatusCode)
	}
}

func TestWebDaemon_events_roundTrip(t *testing.T) {
	d := newTestWebDaemon(t)

	body := `[
	 {"device_id":"dev-1","kind":"start","fix":{"device_id":"dev-1","lat":46.87,"lon":-113.99,"recorded_at":"2023-11-14T22:13:20Z","server_time":"2023-11-14T22:13:20Z","annotation":{"status":"normal"}},"client_time":"2023-11-14T22:13:20Z"},
	 {"device_id":"dev-1","kind":"stop","fix":{"device_id":"dev-1","lat":46.8703,"lon":-113.99,"recorded_at":"2023-11-14T22:15:20Z","server_time":"2023-11-14T22:15:20Z","annotation":{"status":"normal"}},"client_time":"2023-11-14T22:15:20Z"}
	]`
	req := httptest.NewRequest("POST", "http://tripd.local/v1/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	d.handleEvents(w, req)
	resp := w.Result()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code not 200: %d %s", resp.StatusCode, respBody)
	}
	if n := gjson.GetBytes(respBody, "#").Int(); n != 2 {
		t.Fatalf("got %d deltas: %s", n, respBody)
	}
	if state := gjson.GetBytes(respBody, "1.trip.state").String(); state != "closed" {
		t.Errorf("final trip state %q", state)
	}

	// The device's last known fix is now queryable.
	req = httptest.NewRequest("GET", "http://tripd.local/v1/devices/dev-1/last", nil)
	req = mux.SetURLVars(req, map[string]string{"device": "dev-1"})
	w = httptest.NewRecorder()
	d.handleLastKnown(w, req)
	resp = w.Result()
	respBody, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("last known status %d: %s", resp.StatusCode, respBody)
	}
	at, _ := time.Parse(time.RFC3339, "2023-11-14T22:15:20Z")
	if !gjson.GetBytes(respBody, "recorded_at").Time().Equal(at) {
		t.Errorf("last known at %s", gjson.GetBytes(respBody, "recorded_at").String())
	}
}

func TestWebDaemon_events_badBody(t *testing.T) {
	d := newTestWebDaemon(t)
	req := httptest.NewRequest("POST", "http://tripd.local/v1/events", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	d.handleEvents(w, req)
	if w.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status code not 422: %d", w.Result().StatusCode)
	}
}

func TestWebDaemon_segment(t *testing.T) {
	d := newTestWebDaemon(t)

	fixes := make([]string, 0, 11)
	for i := 0; i <= 10; i++ {
		at := time.Unix(1700000000+int64(i*60), 0).UTC().Format(time.RFC3339)
		fixes = append(fixes,
			`{"device_id":"dev-1","lat":46.87,"lon":-113.99,"recorded_at":"`+at+`","server_time":"`+at+`","annotation":{"status":"normal"}}`)
	}
	body := `{"device_id":"dev-1","fixes":[` + strings.Join(fixes, ",") + `]}`

	req := httptest.NewRequest("POST", "http://tripd.local/v1/segment", strings.NewReader(body))
	w := httptest.NewRecorder()
	d.handleSegment(w, req)
	resp := w.Result()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code not 200: %d %s", resp.StatusCode, respBody)
	}
	if n := gjson.GetBytes(respBody, "dwells.#").Int(); n != 1 {
		t.Errorf("got %d dwells: %s", n, respBody)
	}
	if n := gjson.GetBytes(respBody, "drives.#").Int(); n != 0 {
		t.Errorf("got %d drives", n)
	}

	// Replay: served from cache, byte-identical.
	req = httptest.NewRequest("POST", "http://tripd.local/v1/segment", strings.NewReader(body))
	w2 := httptest.NewRecorder()
	d.handleSegment(w2, req)
	respBody2, _ := io.ReadAll(w2.Result().Body)
	if string(respBody2) != string(respBody) {
		t.Error("replayed segment request differs from original")
	}
}
