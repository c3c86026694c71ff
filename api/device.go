// Package api is the orchestration surface: it wires the anomaly
// classifier, the trip lifecycle machine, the segmenter, and device
// state persistence into the operations callers actually invoke.
package api

import (
	"log/slog"

	"github.com/roamtrack/tripd/geo/lifecycle"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/state"
	"github.com/roamtrack/tripd/types/fix"
)

// Device is the API representation of one reporting device.
// It does not reflect device state; data about the device can come from
// a URL parameter, a CLI flag, or an event payload. State lives behind
// WithState.
type Device struct {
	DeviceID string
	State    *state.DeviceState

	logger  *slog.Logger
	machine *lifecycle.Manager
}

func NewDevice(deviceID string, cfg *params.LifecycleConfig) *Device {
	return &Device{
		DeviceID: deviceID,
		logger:   slog.With("device", deviceID),
		machine:  lifecycle.NewManager(cfg),
	}
}

// WithState opens the device's persistent state and restores the
// lifecycle machine from its last snapshot. Stateful. Blocking. Locking.
func (d *Device) WithState(readOnly bool) (*state.DeviceState, error) {
	if d.State != nil {
		return d.State, nil
	}
	sd := &state.Device{DeviceID: d.DeviceID}
	st, err := sd.NewDeviceState(readOnly)
	if err != nil {
		return nil, err
	}
	d.State = st

	snap, err := st.ReadLifecycle()
	if err != nil {
		d.logger.Warn("Did not read lifecycle state (new device?)", "error", err)
	} else if snap != nil {
		d.machine.Restore(snap)
		d.logger.Info("Restored lifecycle state", "cursor", snap.Cursor)
	}
	return d.State, nil
}

func (d *Device) Close() error {
	if d.State == nil {
		return nil
	}
	d.State.Wait()
	err := d.State.Close()
	d.State = nil
	return err
}

// LastKnown returns the device's most recent fix without holding a
// writable state lock.
func LastKnown(deviceID string) (*fix.Annotated, error) {
	sd := &state.Device{DeviceID: deviceID}
	st, err := sd.NewDeviceState(true)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.ReadLastKnown()
}
