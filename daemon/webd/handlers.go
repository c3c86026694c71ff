package webd

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/roamtrack/tripd/api"
	"github.com/roamtrack/tripd/events"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/stream"
	"github.com/roamtrack/tripd/types"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/segmented"
	"github.com/roamtrack/tripd/types/trip"
)

var daemonStarted = time.Now()

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (s *WebDaemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"uptime_s":       time.Since(daemonStarted).Round(time.Second).Seconds(),
		"events_in":      s.meterEventsIn.Snapshot().Count(),
		"events_bad":     s.meterEventsBad.Snapshot().Count(),
		"segments":       s.meterSegments.Snapshot().Count(),
		"events_in_rate": s.meterEventsIn.Snapshot().Rate1(),
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) handleLastKnown(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device"]
	result, err := api.LastKnown(deviceID)
	if err != nil {
		s.logger.Warn("Failed to get last known", "device", deviceID, "error", err)
		http.Error(w, "Failed to get last known", http.StatusNotFound)
		return
	}
	if result == nil {
		http.Error(w, "Device has never reported", http.StatusNotFound)
		return
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// handleEvents is where driving events get posted. It supports a bare
// JSON array, a batch object, or NDJSON. Events are grouped by device
// and run through each device's pipeline; the applied deltas are
// returned in order.
func (s *WebDaemon) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		s.logger.Error("No request body", "method", r.Method, "url", r.URL)
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("Failed to read request body", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.logger.Debug("Decoding events", "bytes", len(body),
		"peek", string(body[:int(math.Min(80, float64(len(body))))]))

	evs, err := types.DecodeDrivingEventsShotgun(body)
	if err != nil {
		s.meterEventsBad.Mark(1)
		s.logger.Error("Failed to decode", "error", err)
		http.Error(w, "Failed to decode", http.StatusUnprocessableEntity)
		return
	}
	s.meterEventsIn.Mark(int64(len(evs)))
	s.feedIngested.Send(evs)
	events.HTTPIngestFeed.Send(evs)

	byDevice := make(map[string][]trip.DrivingEvent)
	order := []string{}
	for _, ev := range evs {
		if _, ok := byDevice[ev.DeviceID]; !ok {
			order = append(order, ev.DeviceID)
		}
		byDevice[ev.DeviceID] = append(byDevice[ev.DeviceID], ev)
	}

	ctx := r.Context()
	deltas := []trip.Delta{}
	for _, deviceID := range order {
		d := api.NewDevice(deviceID, nil)
		out, err := d.ProcessEvents(ctx, stream.Slice(ctx, byDevice[deviceID]))
		if err != nil {
			s.logger.Error("Failed to process events", "device", deviceID, "error", err)
			http.Error(w, "Failed to process events", http.StatusInternalServerError)
			return
		}
		deltas = append(deltas, stream.Collect(ctx, out)...)
		if err := d.Close(); err != nil {
			s.logger.Error("Failed to close device", "device", deviceID, "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(deltas); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

type segmentRequest struct {
	DeviceID string                  `json:"device_id"`
	Fixes    []fix.Annotated         `json:"fixes"`
	Config   *params.SegmenterConfig `json:"config,omitempty"`
}

type segmentResponse struct {
	Dwells []segmented.DwellInterval `json:"dwells"`
	Drives []segmented.DriveSegment  `json:"drives"`
}

// handleSegment partitions a posted fix history into dwells and
// drives. Responses are cached by request hash; segmentation is
// deterministic, so a replayed request is a cache hit.
func (s *WebDaemon) handleSegment(w http.ResponseWriter, r *http.Request) {
	req := segmentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("Failed to decode segment request", "error", err)
		http.Error(w, "Failed to decode", http.StatusUnprocessableEntity)
		return
	}

	key, keyErr := hashstructure.Hash(req, hashstructure.FormatV2, nil)
	if keyErr == nil {
		if cached, ok := s.segmentCache.Get(key); ok {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	dwells, drives, err := api.Segment(req.DeviceID, req.Fixes, req.Config)
	if err != nil {
		s.logger.Error("Failed to segment", "device", req.DeviceID, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.meterSegments.Mark(1)

	body, err := json.Marshal(segmentResponse{Dwells: dwells, Drives: drives})
	if err != nil {
		s.logger.Error("Failed to encode segment response", "error", err)
		http.Error(w, "Failed to encode", http.StatusInternalServerError)
		return
	}
	if keyErr == nil {
		s.segmentCache.Add(key, body)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
