package segmented

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
	"github.com/roamtrack/tripd/common"
	"github.com/roamtrack/tripd/geo/geomath"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
)

// DriveSegment is an interval of sustained movement between dwells.
// Its bounds come from the partition, not from its member fixes: a
// drive owns the whole gap between its neighboring dwells, so a
// connector drive may carry few or even no member fixes.
type DriveSegment struct {
	DeviceID string    `json:"device_id,omitempty"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`

	// FixIDs lists normal/suspected member fixes only. Fixes under a
	// human anomaly verdict keep their timeline position but are
	// dropped from membership and distance.
	FixIDs []string `json:"fix_ids,omitempty"`

	DistanceKM  float64 `json:"distance_km"`
	AvgSpeedMPS float64 `json:"avg_speed_mps"`
	FixCount    int     `json:"fix_count"`

	Path orb.LineString `json:"path,omitempty"`
}

// NewDriveSegment builds a drive over [start, end] from member fixes
// in time order. Distance accumulates between consecutive non-excluded
// members.
func NewDriveSegment(members []fix.Annotated, start, end time.Time) *DriveSegment {
	d := &DriveSegment{
		Start:    start,
		End:      end,
		FixCount: len(members),
	}

	var lastIncluded *fix.Annotated
	meters := 0.0
	for i := range members {
		member := &members[i]
		if d.DeviceID == "" {
			d.DeviceID = member.DeviceID
		}
		if member.ExcludedFromTravel() {
			continue
		}
		if member.ID != "" {
			d.FixIDs = append(d.FixIDs, member.ID)
		}
		d.Path = append(d.Path, member.Point())
		if lastIncluded != nil {
			meters += geomath.DistanceMeters(lastIncluded.Point(), member.Point())
		}
		lastIncluded = member
	}

	d.DistanceKM = meters / 1000
	if span := end.Sub(start).Seconds(); span > 0 {
		d.AvgSpeedMPS = meters / span
	}
	return d
}

// Feature renders the drive as a GeoJSON linestring feature,
// Douglas-Peucker simplified for display.
func (d *DriveSegment) Feature() *geojson.Feature {
	var f *geojson.Feature
	if len(d.Path) >= 2 {
		ls := append(orb.LineString(nil), d.Path...)
		simplifier := simplify.DouglasPeucker(params.DefaultLineStringSimplificationConfig.DouglasPeuckerThreshold)
		f = geojson.NewFeature(simplifier.Simplify(ls))
	} else if len(d.Path) == 1 {
		f = geojson.NewFeature(d.Path[0])
	} else {
		f = geojson.NewFeature(orb.LineString{})
	}
	f.Properties["DeviceID"] = d.DeviceID
	f.Properties["Time_Start_Unix"] = d.Start.Unix()
	f.Properties["Time_Start_RFC3339"] = d.Start.Format(time.RFC3339)
	f.Properties["Time_End_Unix"] = d.End.Unix()
	f.Properties["Time_End_RFC3339"] = d.End.Format(time.RFC3339)
	f.Properties["Distance_Traversed"] = common.DecimalToFixed(d.DistanceKM*1000, 0)
	f.Properties["Speed_Avg"] = common.DecimalToFixed(d.AvgSpeedMPS, 2)
	f.Properties["FixCount"] = d.FixCount
	return f
}
