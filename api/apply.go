package api

import (
	"fmt"

	"github.com/roamtrack/tripd/events"
	"github.com/roamtrack/tripd/types/trip"
)

// ApplyDrivingEvent validates one event and runs it through the
// device's lifecycle machine. When state is attached the machine
// snapshot and the last-known fix are persisted before the delta is
// returned. The delta is also published on the trip-delta feed.
func (d *Device) ApplyDrivingEvent(ev trip.DrivingEvent) (trip.Delta, error) {
	if err := ev.Validate(); err != nil {
		return trip.Delta{}, err
	}
	if ev.DeviceID != d.DeviceID {
		return trip.Delta{}, fmt.Errorf("mismatched device: want %s, got %s", d.DeviceID, ev.DeviceID)
	}

	delta, err := d.machine.Apply(ev)
	if err != nil {
		return trip.Delta{}, err
	}

	if d.State != nil {
		if snap, ok := d.machine.Snapshot(d.DeviceID); ok {
			if err := d.State.StoreLifecycle(snap); err != nil {
				d.logger.Error("Failed to store lifecycle state", "error", err)
			}
		}
		f := ev.Fix
		if err := d.State.StoreLastKnown(&f); err != nil {
			d.logger.Error("Failed to store last known fix", "error", err)
		}
	}

	events.LastKnownFeed.Send(ev.Fix)
	events.TripDeltaFeed.Send(delta)
	return delta, nil
}
