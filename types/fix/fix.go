// Package fix defines the LocationFix record: one timestamped GPS sample.
// A fix is immutable once created; corrections arrive as new fixes.
package fix

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/roamtrack/tripd/params"
)

// Fix is one GPS sample as reported by a device.
// Nullable sensor readings are pointers; absent means not reported,
// which is not the same as zero.
type Fix struct {
	ID         string    `json:"id,omitempty"`
	DeviceID   string    `json:"device_id"`
	UserID     string    `json:"user_id,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Accuracy   *float64  `json:"accuracy_m,omitempty"`
	Altitude   *float64  `json:"altitude_m,omitempty"`
	Speed      *float64  `json:"speed_mps,omitempty"`
	Bearing    *float64  `json:"bearing_deg,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	ServerTime time.Time `json:"server_time"`
}

// Point returns the fix position as an orb.Point (x=lon, y=lat).
func (f *Fix) Point() orb.Point {
	return orb.Point{f.Lon, f.Lat}
}

// Validate checks the fix for basic validity, returning the first
// error it encounters. Nothing is silently corrected.
func (f *Fix) Validate() error {
	return f.ValidateWithSkew(params.DefaultLifecycleConfig.ClockSkewAllowance)
}

func (f *Fix) ValidateWithSkew(skewAllowance time.Duration) error {
	if f.DeviceID == "" {
		return fmt.Errorf("empty device_id")
	}
	if f.Lat < -90 || f.Lat > 90 {
		return fmt.Errorf("invalid coordinate: lat=%.14f", f.Lat)
	}
	if f.Lon < -180 || f.Lon > 180 {
		return fmt.Errorf("invalid coordinate: lon=%.14f", f.Lon)
	}
	if f.Accuracy != nil && *f.Accuracy < 0 {
		return fmt.Errorf("negative accuracy_m: %f", *f.Accuracy)
	}
	if f.Speed != nil && *f.Speed < 0 {
		return fmt.Errorf("negative speed_mps: %f", *f.Speed)
	}
	if f.Bearing != nil && (*f.Bearing < 0 || *f.Bearing >= 360) {
		return fmt.Errorf("bearing_deg out of [0,360): %f", *f.Bearing)
	}
	if f.RecordedAt.IsZero() {
		return fmt.Errorf("zero recorded_at")
	}
	if !f.ServerTime.IsZero() && f.RecordedAt.After(f.ServerTime.Add(skewAllowance)) {
		return fmt.Errorf("recorded_at leads server_time beyond skew allowance: %v > %v+%v",
			f.RecordedAt, f.ServerTime, skewAllowance)
	}
	return nil
}

// AccuracyOr returns the reported accuracy or def when unreported.
func (f *Fix) AccuracyOr(def float64) float64 {
	if f.Accuracy == nil {
		return def
	}
	return *f.Accuracy
}

// SpeedOr returns the reported speed or def when unreported.
func (f *Fix) SpeedOr(def float64) float64 {
	if f.Speed == nil {
		return def
	}
	return *f.Speed
}

// SlicesSortFunc orders fixes chronologically, breaking ties by
// accuracy (better accuracy first) then ID.
// > cmp(a, b) should return a negative number when a < b.
func SlicesSortFunc(a, b Annotated) int {
	if a.RecordedAt.Before(b.RecordedAt) {
		return -1
	}
	if a.RecordedAt.After(b.RecordedAt) {
		return 1
	}
	aAcc, bAcc := a.AccuracyOr(0), b.AccuracyOr(0)
	if aAcc < bAcc {
		return -1
	}
	if aAcc > bAcc {
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}
