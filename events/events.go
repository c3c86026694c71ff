package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/segmented"
	"github.com/roamtrack/tripd/types/trip"
)

// TripDeltaFeed is emitted for every driving event applied to the
// lifecycle machine, carrying the trip's aggregate snapshot. Closed
// trips are recognizable by their state.
var TripDeltaFeed = event.FeedOf[trip.Delta]{}

// HTTPIngestFeed is a feed of driving events as they arrive over HTTP.
// The payload is nearly-exactly as received: decoded, but not yet
// validated, deduped, nor applied. Events ingested from stdin do not
// pass through this feed.
var HTTPIngestFeed = event.FeedOf[[]trip.DrivingEvent]{}

// LastKnownFeed is emitted when a device's last-known fix advances.
var LastKnownFeed = event.FeedOf[fix.Annotated]{}

// DwellFeed is emitted for every dwell interval produced by
// segmentation.
var DwellFeed = event.FeedOf[segmented.DwellInterval]{}
