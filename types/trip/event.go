package trip

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roamtrack/tripd/types/fix"
)

// Kind is the closed set of driving lifecycle signals.
type Kind int

const (
	KindStart Kind = iota
	KindData
	KindStop
)

var kindNames = map[Kind]string{
	KindStart: "start",
	KindData:  "data",
	KindStop:  "stop",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

func KindFromString(s string) (Kind, error) {
	for k, v := range kindNames {
		if v == s {
			return k, nil
		}
	}
	return KindData, fmt.Errorf("unknown event kind: %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := KindFromString(name)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// DrivingEvent is one lifecycle signal from a device.
// TripID is absent on start (the server assigns one) and carried by the
// client thereafter. Summary is only meaningful on stop.
type DrivingEvent struct {
	DeviceID   string         `json:"device_id"`
	TripID     string         `json:"trip_id,omitempty"`
	Kind       Kind           `json:"kind"`
	Fix        fix.Annotated  `json:"fix"`
	ClientTime time.Time      `json:"client_time"`
	Summary    *ClientSummary `json:"trip_summary,omitempty"`
}

// Validate rejects malformed events with a descriptive error.
// Recoverable lifecycle anomalies (duplicate start, orphans) are NOT
// validation failures; they surface as Delta conditions.
func (e *DrivingEvent) Validate() error {
	if e.DeviceID == "" {
		return fmt.Errorf("empty device_id")
	}
	if _, ok := kindNames[e.Kind]; !ok {
		return fmt.Errorf("invalid event kind: %d", int(e.Kind))
	}
	if e.ClientTime.IsZero() {
		return fmt.Errorf("zero client_time")
	}
	if err := e.Fix.Validate(); err != nil {
		return fmt.Errorf("invalid fix: %w", err)
	}
	if e.Fix.DeviceID != e.DeviceID {
		return fmt.Errorf("fix device_id %q does not match event device_id %q",
			e.Fix.DeviceID, e.DeviceID)
	}
	if e.Kind != KindStop && e.Summary != nil {
		return fmt.Errorf("trip_summary only valid on stop, got %s", e.Kind)
	}
	return nil
}

// ClientSummary is the client's own idea of the finished trip.
// Advisory metadata only: validated for internal consistency and
// echoed back, never substituted for computed aggregates.
type ClientSummary struct {
	DistanceKM  *float64  `json:"distance_km,omitempty"`
	DurationS   *float64  `json:"duration_s,omitempty"`
	MaxSpeedMPS *float64  `json:"max_speed_mps,omitempty"`
	Locations   []LatLon  `json:"locations,omitempty"`
}

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (cs *ClientSummary) Validate() error {
	if cs.DistanceKM != nil && *cs.DistanceKM < 0 {
		return fmt.Errorf("negative summary distance_km: %f", *cs.DistanceKM)
	}
	if cs.DurationS != nil && *cs.DurationS < 0 {
		return fmt.Errorf("negative summary duration_s: %f", *cs.DurationS)
	}
	if cs.MaxSpeedMPS != nil && *cs.MaxSpeedMPS < 0 {
		return fmt.Errorf("negative summary max_speed_mps: %f", *cs.MaxSpeedMPS)
	}
	for i, loc := range cs.Locations {
		if loc.Lat < -90 || loc.Lat > 90 {
			return fmt.Errorf("summary location %d: invalid lat=%f", i, loc.Lat)
		}
		if loc.Lon < -180 || loc.Lon > 180 {
			return fmt.Errorf("summary location %d: invalid lon=%f", i, loc.Lon)
		}
	}
	return nil
}

// Delta is the result of applying one driving event: the trip's current
// aggregate snapshot plus any recoverable condition for the caller to
// log or surface.
type Delta struct {
	Trip      Trip      `json:"trip"`
	Condition Condition `json:"condition,omitempty"`

	// ClientSummary echoes the advisory summary from a stop event.
	// SummaryIssue carries its validation problem, if any.
	ClientSummary *ClientSummary `json:"client_summary,omitempty"`
	SummaryIssue  string         `json:"summary_issue,omitempty"`
}
