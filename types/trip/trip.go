// Package trip defines the trip aggregate and the driving lifecycle
// event/result records exchanged with the ingestion boundary.
package trip

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/roamtrack/tripd/common"
)

// State of a trip: open while the device is between start and stop.
type State int

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "open":
		*s = StateOpen
	case "closed":
		*s = StateClosed
	default:
		return fmt.Errorf("unknown trip state: %q", name)
	}
	return nil
}

// Condition reports a recoverable lifecycle anomaly. Not an error;
// the caller decides whether to log or alert.
type Condition string

const (
	ConditionNone           Condition = ""
	ConditionDuplicateStart Condition = "duplicate_start"
	ConditionOrphanStop     Condition = "orphan_stop"
	ConditionImplicitStart  Condition = "implicit_start"
)

// Trip is the aggregate spanning a device's start->stop lifecycle.
// Aggregates are computed server-side; a client-supplied summary is
// never substituted for them.
type Trip struct {
	TripID      string    `json:"trip_id"`
	DeviceID    string    `json:"device_id"`
	State       State     `json:"state"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	FixCount    int       `json:"fix_count"`
	DistanceKM  float64   `json:"distance_km"`
	DurationS   float64   `json:"duration_s"`
	MaxSpeedMPS float64   `json:"max_speed_mps"`
	AvgSpeedMPS float64   `json:"avg_speed_mps"`

	// Origin is set when the trip was synthesized rather than started
	// by an explicit start event.
	Origin Condition `json:"origin,omitempty"`

	// Path is the ordered positions of the trip's non-excluded fixes.
	Path orb.LineString `json:"path,omitempty"`

	// SpeedReported and SpeedCalculated are installed when the trip
	// closes; nil while open.
	SpeedReported   *SpeedStats `json:"speed_reported,omitempty"`
	SpeedCalculated *SpeedStats `json:"speed_calculated,omitempty"`
}

// SpeedStats summarizes a sample of speeds in m/s.
type SpeedStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// NewSpeedStats summarizes samples; nil for an empty sample.
func NewSpeedStats(samples []float64) *SpeedStats {
	if len(samples) == 0 {
		return nil
	}
	data := stats.Float64Data(samples)
	mustFloat := func(fn func() (float64, error)) float64 {
		out, err := fn()
		if err != nil {
			return 0
		}
		return common.DecimalToFixed(out, 2)
	}
	return &SpeedStats{
		Mean:   mustFloat(data.Mean),
		Median: mustFloat(data.Median),
		Min:    mustFloat(data.Min),
		Max:    mustFloat(data.Max),
	}
}

// NewTripID builds the conventional device/time-unique trip ID.
func NewTripID(deviceID string, t time.Time) string {
	return fmt.Sprintf("%s_%010d", deviceID, t.Unix())
}

// Feature renders the trip as a GeoJSON feature for map display:
// a LineString of the traveled path, or a Point for single-fix trips.
func (t *Trip) Feature() *geojson.Feature {
	var f *geojson.Feature
	if len(t.Path) >= 2 {
		f = geojson.NewFeature(t.Path)
	} else if len(t.Path) == 1 {
		f = geojson.NewFeature(t.Path[0])
	} else {
		f = geojson.NewFeature(orb.Point{})
	}
	f.Properties["TripID"] = t.TripID
	f.Properties["DeviceID"] = t.DeviceID
	f.Properties["State"] = t.State.String()
	f.Properties["Time_Start_Unix"] = t.StartedAt.Unix()
	f.Properties["Time_Start_RFC3339"] = t.StartedAt.Format(time.RFC3339)
	if !t.EndedAt.IsZero() {
		f.Properties["Time_End_Unix"] = t.EndedAt.Unix()
		f.Properties["Time_End_RFC3339"] = t.EndedAt.Format(time.RFC3339)
	}
	f.Properties["FixCount"] = t.FixCount
	f.Properties["Distance_Traversed"] = common.DecimalToFixed(t.DistanceKM*1000, 0)
	f.Properties["Duration"] = t.DurationS
	f.Properties["Speed_Max"] = common.DecimalToFixed(t.MaxSpeedMPS, 2)
	f.Properties["Speed_Avg"] = common.DecimalToFixed(t.AvgSpeedMPS, 2)
	if t.Origin != ConditionNone {
		f.Properties["Origin"] = string(t.Origin)
	}
	if t.SpeedReported != nil {
		f.Properties["Speed_Reported_Mean"] = t.SpeedReported.Mean
		f.Properties["Speed_Reported_Median"] = t.SpeedReported.Median
		f.Properties["Speed_Reported_Max"] = t.SpeedReported.Max
	}
	if t.SpeedCalculated != nil {
		f.Properties["Speed_Calculated_Mean"] = t.SpeedCalculated.Mean
		f.Properties["Speed_Calculated_Median"] = t.SpeedCalculated.Median
		f.Properties["Speed_Calculated_Max"] = t.SpeedCalculated.Max
	}
	return f
}
