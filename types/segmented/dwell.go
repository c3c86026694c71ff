// Package segmented defines the output records of trajectory
// segmentation: dwell intervals (stationary) and drive segments
// (moving), which together partition a fix timeline.
package segmented

import (
	"time"

	"github.com/golang/geo/s2"
	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/roamtrack/tripd/common"
	"github.com/roamtrack/tripd/types/fix"
)

// DwellCellLevel is the s2 level dwell centers are tagged with.
// Level 16 is about a city block; right for "same place" grouping.
const DwellCellLevel = 16

// DwellInterval is a maximal time range where a device's fixes stay
// within a clustering radius.
type DwellInterval struct {
	DeviceID string    `json:"device_id,omitempty"`
	Center   orb.Point `json:"center"` // x=lon, y=lat
	RadiusM  float64   `json:"radius_m"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	FixIDs   []string  `json:"fix_ids,omitempty"`

	FixCount     int     `json:"fix_count"`
	DurationS    float64 `json:"duration_s"`
	AccuracyMean float64 `json:"accuracy_mean,omitempty"`

	// CellID is the s2 cell token of the center at DwellCellLevel.
	CellID string `json:"cell_id,omitempty"`
}

// NewDwellInterval builds a dwell from its member fixes, which must be
// in time order. The center is the arithmetic mean of member
// coordinates, matching the clustering centroid.
func NewDwellInterval(members []fix.Annotated, radiusM float64) *DwellInterval {
	if len(members) == 0 {
		return nil
	}

	mp := make(orb.MultiPoint, 0, len(members))
	accuracies := make([]float64, 0, len(members))
	fixIDs := make([]string, 0, len(members))
	for i := range members {
		mp = append(mp, members[i].Point())
		if members[i].Accuracy != nil {
			accuracies = append(accuracies, *members[i].Accuracy)
		}
		if members[i].ID != "" {
			fixIDs = append(fixIDs, members[i].ID)
		}
	}
	centroid, _ := planar.CentroidArea(mp)

	d := &DwellInterval{
		DeviceID: members[0].DeviceID,
		Center:   centroid,
		RadiusM:  radiusM,
		Start:    members[0].RecordedAt,
		End:      members[len(members)-1].RecordedAt,
		FixIDs:   fixIDs,
		FixCount: len(members),
		CellID: s2.CellIDFromLatLng(
			s2.LatLngFromDegrees(centroid.Lat(), centroid.Lon()),
		).Parent(DwellCellLevel).ToToken(),
	}
	d.DurationS = d.End.Sub(d.Start).Seconds()
	if mean, err := stats.Float64Data(accuracies).Mean(); err == nil {
		d.AccuracyMean = common.DecimalToFixed(mean, 0)
	}
	return d
}

// Feature renders the dwell as a GeoJSON point feature.
func (d *DwellInterval) Feature() *geojson.Feature {
	f := geojson.NewFeature(d.Center)
	f.Properties["DeviceID"] = d.DeviceID
	f.Properties["Radius"] = d.RadiusM
	f.Properties["Time_Start_Unix"] = d.Start.Unix()
	f.Properties["Time_Start_RFC3339"] = d.Start.Format(time.RFC3339)
	f.Properties["Time_End_Unix"] = d.End.Unix()
	f.Properties["Time_End_RFC3339"] = d.End.Format(time.RFC3339)
	f.Properties["Duration"] = d.DurationS
	f.Properties["FixCount"] = d.FixCount
	f.Properties["CellID"] = d.CellID
	if d.AccuracyMean != 0 {
		f.Properties["Accuracy_Mean"] = d.AccuracyMean
	}
	return f
}
