package state

import (
	"testing"
	"time"

	"github.com/roamtrack/tripd/geo/lifecycle"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/trip"
)

func testDeviceState(t *testing.T, deviceID string) *DeviceState {
	t.Helper()
	restore := params.DatadirRoot
	params.DatadirRoot = t.TempDir()
	t.Cleanup(func() { params.DatadirRoot = restore })

	d := &Device{DeviceID: deviceID}
	s, err := d.NewDeviceState(false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLifecycleRoundTrip(t *testing.T) {
	s := testDeviceState(t, "dev-1")

	got, err := s.ReadLifecycle()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("fresh device has lifecycle state: %+v", got)
	}

	st := &lifecycle.DeviceState{
		DeviceID: "dev-1",
		Cursor:   time.Unix(1700000000, 0).UTC(),
		Open: &lifecycle.OpenTrip{
			Trip: trip.Trip{
				TripID:    "dev-1_1700000000",
				DeviceID:  "dev-1",
				State:     trip.StateOpen,
				StartedAt: time.Unix(1700000000, 0).UTC(),
				FixCount:  3,
			},
		},
	}
	if err := s.StoreLifecycle(st); err != nil {
		t.Fatal(err)
	}

	got, err = s.ReadLifecycle()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Open == nil {
		t.Fatalf("got %+v", got)
	}
	if got.Open.Trip.TripID != st.Open.Trip.TripID || got.Open.Trip.FixCount != 3 {
		t.Errorf("got trip %+v", got.Open.Trip)
	}
	if !got.Cursor.Equal(st.Cursor) {
		t.Errorf("cursor %v, want %v", got.Cursor, st.Cursor)
	}
}

func TestLastKnownRoundTrip(t *testing.T) {
	s := testDeviceState(t, "dev-1")

	got, err := s.ReadLastKnown()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("fresh device has a last known fix: %+v", got)
	}

	at := time.Unix(1700000000, 0).UTC()
	f := &fix.Annotated{
		Fix: fix.Fix{
			ID:         "fix-1",
			DeviceID:   "dev-1",
			Lat:        46.8721,
			Lon:        -113.9940,
			RecordedAt: at,
			ServerTime: at,
		},
	}
	if err := s.StoreLastKnown(f); err != nil {
		t.Fatal(err)
	}

	// Warm cache path.
	got, err = s.ReadLastKnown()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "fix-1" {
		t.Fatalf("got %+v", got)
	}

	// Cold path: evict the cache, read from the DB.
	s.TTLCache.Delete("last")
	got, err = s.ReadLastKnown()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "fix-1" || !got.RecordedAt.Equal(at) {
		t.Fatalf("got %+v", got)
	}
}
