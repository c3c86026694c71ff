// Package lifecycle is the per-device trip state machine, driven by
// start/data/stop driving events.
//
// States per device: no trip, or one open trip. Transitions for one
// device are serialized internally; different devices never contend.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/roamtrack/tripd/geo/geomath"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/trip"
)

// DeviceState is the whole mutable state the machine keeps for one
// device. It is JSON-marshalable so a caller can persist and restore it.
type DeviceState struct {
	DeviceID string    `json:"device_id"`
	Cursor   time.Time `json:"cursor"` // client_time high-water mark
	Open     *OpenTrip `json:"open,omitempty"`
}

// OpenTrip is an in-progress trip plus its accumulation cursors.
type OpenTrip struct {
	Trip trip.Trip `json:"trip"`

	// LastIncludedPoint/Time track the last non-excluded fix, the
	// anchor for distance and implied-speed accumulation.
	LastIncludedPoint *orb.Point `json:"last_included_point,omitempty"`
	LastIncludedTime  time.Time  `json:"last_included_time,omitempty"`

	ReportedSpeeds   []float64 `json:"reported_speeds,omitempty"`
	CalculatedSpeeds []float64 `json:"calculated_speeds,omitempty"`
}

// Manager applies driving events to per-device trip state.
// One Manager may serve many devices; access is serialized per device
// key, never globally.
type Manager struct {
	Config *params.LifecycleConfig

	mu      sync.Mutex // guards the devices table only
	devices map[string]*deviceEntry
}

type deviceEntry struct {
	mu    sync.Mutex
	state *DeviceState
}

func NewManager(cfg *params.LifecycleConfig) *Manager {
	if cfg == nil {
		cfg = params.DefaultLifecycleConfig
	}
	return &Manager{
		Config:  cfg,
		devices: make(map[string]*deviceEntry),
	}
}

func (m *Manager) device(deviceID string) *deviceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.devices[deviceID]
	if !ok {
		entry = &deviceEntry{state: &DeviceState{DeviceID: deviceID}}
		m.devices[deviceID] = entry
	}
	return entry
}

// Restore installs previously persisted state for a device,
// replacing whatever the manager holds.
func (m *Manager) Restore(st *DeviceState) {
	if st == nil || st.DeviceID == "" {
		return
	}
	entry := m.device(st.DeviceID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.state = st
}

// Snapshot returns a copy of the device's state, safe to persist
// while the manager keeps running.
func (m *Manager) Snapshot(deviceID string) (*DeviceState, bool) {
	m.mu.Lock()
	entry, ok := m.devices[deviceID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	cp := *entry.state
	if entry.state.Open != nil {
		openCp := *entry.state.Open
		openCp.Trip = snapshotTrip(&entry.state.Open.Trip)
		openCp.ReportedSpeeds = append([]float64(nil), entry.state.Open.ReportedSpeeds...)
		openCp.CalculatedSpeeds = append([]float64(nil), entry.state.Open.CalculatedSpeeds...)
		cp.Open = &openCp
	}
	return &cp, true
}

// Apply runs one event through the state machine and reports the
// trip's aggregate snapshot plus any recoverable condition.
//
// Events must arrive in increasing client_time order per device; an
// event older than the device cursor by more than the reorder window
// is rejected, and one within the window is applied at the cursor.
func (m *Manager) Apply(ev trip.DrivingEvent) (trip.Delta, error) {
	if err := ev.Validate(); err != nil {
		return trip.Delta{}, err
	}

	entry := m.device(ev.DeviceID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	st := entry.state
	clientTime := ev.ClientTime
	if !st.Cursor.IsZero() && clientTime.Before(st.Cursor) {
		lag := st.Cursor.Sub(clientTime)
		if lag > m.Config.EventReorderWindow {
			return trip.Delta{}, fmt.Errorf(
				"event out of order beyond tolerance: client_time %v behind cursor %v by %v (window %v)",
				clientTime, st.Cursor, lag, m.Config.EventReorderWindow)
		}
		clientTime = st.Cursor
	}

	var delta trip.Delta
	switch ev.Kind {
	case trip.KindStart:
		delta = m.applyStart(st, &ev)
	case trip.KindData:
		delta = m.applyData(st, &ev)
	case trip.KindStop:
		delta = m.applyStop(st, &ev)
	}
	st.Cursor = clientTime
	return delta, nil
}

func (m *Manager) applyStart(st *DeviceState, ev *trip.DrivingEvent) trip.Delta {
	if st.Open != nil {
		// Devices resend start on reconnect. Idempotent-ignore.
		return trip.Delta{
			Trip:      snapshotTrip(&st.Open.Trip),
			Condition: trip.ConditionDuplicateStart,
		}
	}
	st.Open = newOpenTrip(ev, trip.ConditionNone)
	return trip.Delta{Trip: snapshotTrip(&st.Open.Trip)}
}

func (m *Manager) applyData(st *DeviceState, ev *trip.DrivingEvent) trip.Delta {
	if st.Open == nil {
		st.Open = newOpenTrip(ev, trip.ConditionImplicitStart)
		return trip.Delta{
			Trip:      snapshotTrip(&st.Open.Trip),
			Condition: trip.ConditionImplicitStart,
		}
	}
	st.Open.absorb(&ev.Fix)
	return trip.Delta{Trip: snapshotTrip(&st.Open.Trip)}
}

func (m *Manager) applyStop(st *DeviceState, ev *trip.DrivingEvent) trip.Delta {
	delta := trip.Delta{}
	if ev.Summary != nil {
		delta.ClientSummary = ev.Summary
		if err := ev.Summary.Validate(); err != nil {
			delta.SummaryIssue = err.Error()
		}
	}

	if st.Open == nil {
		// A stop with no open trip: synthesize a trip spanning only
		// the stop's own fix. Reported, not fatal.
		tripID := ev.TripID
		if tripID == "" {
			tripID = trip.NewTripID(ev.DeviceID, ev.Fix.RecordedAt)
		}
		t := trip.Trip{
			TripID:    tripID,
			DeviceID:  ev.DeviceID,
			State:     trip.StateClosed,
			StartedAt: ev.Fix.RecordedAt,
			EndedAt:   ev.Fix.RecordedAt,
			FixCount:  1,
			Origin:    trip.ConditionOrphanStop,
		}
		if !ev.Fix.ExcludedFromTravel() {
			t.Path = orb.LineString{ev.Fix.Point()}
		}
		delta.Trip = t
		delta.Condition = trip.ConditionOrphanStop
		return delta
	}

	open := st.Open
	open.absorb(&ev.Fix)

	t := &open.Trip
	t.State = trip.StateClosed
	t.EndedAt = ev.Fix.RecordedAt
	t.DurationS = t.EndedAt.Sub(t.StartedAt).Seconds()
	if t.DurationS > 0 {
		t.AvgSpeedMPS = t.DistanceKM * 1000 / t.DurationS
	}
	t.SpeedReported = trip.NewSpeedStats(open.ReportedSpeeds)
	t.SpeedCalculated = trip.NewSpeedStats(open.CalculatedSpeeds)

	delta.Trip = snapshotTrip(t)
	st.Open = nil
	return delta
}

func newOpenTrip(ev *trip.DrivingEvent, origin trip.Condition) *OpenTrip {
	tripID := ev.TripID
	if tripID == "" {
		tripID = trip.NewTripID(ev.DeviceID, ev.Fix.RecordedAt)
	}
	open := &OpenTrip{
		Trip: trip.Trip{
			TripID:    tripID,
			DeviceID:  ev.DeviceID,
			State:     trip.StateOpen,
			StartedAt: ev.Fix.RecordedAt,
			Origin:    origin,
		},
	}
	open.absorb(&ev.Fix)
	return open
}

// absorb folds one fix into the running aggregates. Fixes carrying a
// human anomaly verdict count toward FixCount and the timeline but are
// skipped for distance and speed.
func (o *OpenTrip) absorb(f *fix.Annotated) {
	t := &o.Trip
	t.FixCount++

	if !f.ExcludedFromTravel() {
		pt := f.Point()
		if o.LastIncludedPoint != nil {
			meters := geomath.DistanceMeters(*o.LastIncludedPoint, pt)
			t.DistanceKM += meters / 1000
			implied := geomath.ImpliedSpeedMPS(*o.LastIncludedPoint, pt, o.LastIncludedTime, f.RecordedAt)
			o.CalculatedSpeeds = append(o.CalculatedSpeeds, implied)
			if implied > t.MaxSpeedMPS {
				t.MaxSpeedMPS = implied
			}
		}
		if f.Speed != nil {
			o.ReportedSpeeds = append(o.ReportedSpeeds, *f.Speed)
			if *f.Speed > t.MaxSpeedMPS {
				t.MaxSpeedMPS = *f.Speed
			}
		}
		t.Path = append(t.Path, pt)
		o.LastIncludedPoint = &pt
		o.LastIncludedTime = f.RecordedAt
	}

	if f.RecordedAt.After(t.StartedAt) {
		t.DurationS = f.RecordedAt.Sub(t.StartedAt).Seconds()
		if t.DurationS > 0 {
			t.AvgSpeedMPS = t.DistanceKM * 1000 / t.DurationS
		}
	}
}

func snapshotTrip(t *trip.Trip) trip.Trip {
	cp := *t
	cp.Path = append(orb.LineString(nil), t.Path...)
	return cp
}

// Stream applies a channel of events, emitting one delta per applied
// event. Invalid events are logged and skipped; the stream keeps going.
func (m *Manager) Stream(ctx context.Context, in <-chan trip.DrivingEvent) <-chan trip.Delta {
	out := make(chan trip.Delta)
	go func() {
		defer close(out)
		for ev := range in {
			delta, err := m.Apply(ev)
			if err != nil {
				slog.Warn("Dropping driving event", "device", ev.DeviceID, "kind", ev.Kind, "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- delta:
			}
		}
	}()
	return out
}
