package api

import (
	"slices"

	"github.com/roamtrack/tripd/events"
	"github.com/roamtrack/tripd/geo/segmenter"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/segmented"
)

// Segment partitions a device's annotated fix history into dwells and
// drives. Fixes are sorted chronologically first; the segmenter itself
// refuses out-of-order input. Each dwell is published on the dwell feed.
func Segment(deviceID string, fixes []fix.Annotated, cfg *params.SegmenterConfig) ([]segmented.DwellInterval, []segmented.DriveSegment, error) {
	sorted := append([]fix.Annotated(nil), fixes...)
	slices.SortFunc(sorted, fix.SlicesSortFunc)

	dwells, drives, err := segmenter.Segment(sorted, cfg)
	if err != nil {
		return nil, nil, err
	}

	for i := range dwells {
		if dwells[i].DeviceID == "" {
			dwells[i].DeviceID = deviceID
		}
		events.DwellFeed.Send(dwells[i])
	}
	for i := range drives {
		if drives[i].DeviceID == "" {
			drives[i].DeviceID = deviceID
		}
	}
	return dwells, drives, nil
}
