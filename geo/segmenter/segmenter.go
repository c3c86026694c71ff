// Package segmenter partitions an annotated, time-ordered fix sequence
// into dwell intervals (stationary) and drive segments (moving).
//
// The algorithm is a sliding-window cluster walk: a candidate cluster
// grows while fixes stay within the dwell radius of its running-mean
// centroid, becomes a dwell if its time span reaches the minimum dwell
// duration, and otherwise dissolves back into the motion pool. The
// centroid is the running arithmetic mean in insertion order, so
// results are deterministic for identical input.
package segmenter

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/roamtrack/tripd/geo/geomath"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/segmented"
)

// Segment partitions fixes into dwells and drives. The emitted
// intervals cover [first.RecordedAt, last.RecordedAt] of the input
// with no gaps and no overlaps.
//
// Fixes must be in non-decreasing time order; out-of-order input is
// rejected, never silently re-sorted. Fixes with a marked status are
// excluded from clustering but their timeline gap is bridged: the
// interval they would occupy belongs to whichever segment is open
// there, so a brief marked outlier does not fracture a dwell or drive.
//
// Fewer than 2 usable fixes yields empty results and no error.
// A nil cfg uses params.DefaultSegmenterConfig.
func Segment(fixes []fix.Annotated, cfg *params.SegmenterConfig) ([]segmented.DwellInterval, []segmented.DriveSegment, error) {
	if cfg == nil {
		cfg = params.DefaultSegmenterConfig
	}

	for i := 1; i < len(fixes); i++ {
		if fixes[i].RecordedAt.Before(fixes[i-1].RecordedAt) {
			return nil, nil, fmt.Errorf(
				"fixes out of order at index %d: %v before %v",
				i, fixes[i].RecordedAt, fixes[i-1].RecordedAt)
		}
	}

	usable := make([]fix.Annotated, 0, len(fixes))
	for i := range fixes {
		if fixes[i].Annotation.Status == fix.StatusMarked {
			continue
		}
		usable = append(usable, fixes[i])
	}
	if len(usable) < 2 {
		return []segmented.DwellInterval{}, []segmented.DriveSegment{}, nil
	}

	clusters := clusterWalk(usable, cfg)

	// The partition spans the full input window, marked edges included.
	windowStart := fixes[0].RecordedAt
	windowEnd := fixes[len(fixes)-1].RecordedAt

	dwells := make([]segmented.DwellInterval, 0, len(clusters))
	drives := make([]segmented.DriveSegment, 0, len(clusters)+1)

	cursorTime := windowStart
	cursorIdx := 0
	for _, cl := range clusters {
		dwell := segmented.NewDwellInterval(usable[cl.first:cl.last+1], cfg.DwellRadiusMeters)

		if cursorTime.Before(dwell.Start) {
			if cl.first == cursorIdx && len(dwells) == 0 && len(drives) == 0 {
				// Leading marked-only gap bridges into the first dwell.
				dwell.Start = cursorTime
				dwell.DurationS = dwell.End.Sub(dwell.Start).Seconds()
			} else {
				// Everything since the previous segment is one drive,
				// even when no fixes fall in the gap.
				drives = append(drives, *segmented.NewDriveSegment(
					usable[cursorIdx:cl.first], cursorTime, dwell.Start))
			}
		}

		dwells = append(dwells, *dwell)
		cursorTime = dwell.End
		cursorIdx = cl.last + 1
	}

	if cursorIdx < len(usable) || cursorTime.Before(windowEnd) {
		if cursorIdx == len(usable) && len(dwells) > 0 {
			// Trailing marked-only gap bridges into the final dwell.
			last := &dwells[len(dwells)-1]
			last.End = windowEnd
			last.DurationS = last.End.Sub(last.Start).Seconds()
		} else {
			drives = append(drives, *segmented.NewDriveSegment(
				usable[cursorIdx:], cursorTime, windowEnd))
		}
	}

	return dwells, drives, nil
}

type clusterRange struct {
	first, last int // inclusive indices into the usable slice
}

// clusterWalk runs the centroid clustering over usable fixes and
// returns the ranges that qualified as dwells.
func clusterWalk(usable []fix.Annotated, cfg *params.SegmenterConfig) []clusterRange {
	clusters := []clusterRange{}

	var (
		first, count   int
		sumLon, sumLat float64
	)
	reset := func(i int) {
		first, count = i, 1
		sumLon, sumLat = usable[i].Lon, usable[i].Lat
	}
	centroid := func() orb.Point {
		return orb.Point{sumLon / float64(count), sumLat / float64(count)}
	}
	qualify := func(lastIdx int) {
		span := usable[lastIdx].RecordedAt.Sub(usable[first].RecordedAt)
		if span >= cfg.MinDwellDuration {
			clusters = append(clusters, clusterRange{first: first, last: lastIdx})
		}
		// Too brief to count as a stop (a red light): the fixes fall
		// back into the motion pool by not being claimed.
	}

	reset(0)
	for i := 1; i < len(usable); i++ {
		if geomath.DistanceMeters(centroid(), usable[i].Point()) <= cfg.DwellRadiusMeters {
			count++
			sumLon += usable[i].Lon
			sumLat += usable[i].Lat
			continue
		}
		qualify(i - 1)
		reset(i)
	}
	qualify(len(usable) - 1)

	return clusters
}
