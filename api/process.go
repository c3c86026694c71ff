package api

import (
	"context"
	"io"
	"time"

	"github.com/roamtrack/tripd/geo/anomaly"
	"github.com/roamtrack/tripd/stream"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/trip"
)

// ProcessEvents runs incoming driving events through the full pipeline:
// validation, dedupe, anomaly classification, the lifecycle machine,
// and state persistence. One delta is emitted per applied event.
//
// Invalid and duplicate events are logged and dropped; the stream keeps
// going. The returned channel closes when the input closes or ctx ends.
func (d *Device) ProcessEvents(ctx context.Context, in <-chan trip.DrivingEvent) (<-chan trip.Delta, error) {
	d.logger.Info("ProcessEvents blocking on state lock")
	if _, err := d.WithState(false); err != nil {
		d.logger.Error("Failed to open device state", "error", err)
		return nil, err
	}
	started := time.Now()

	dedupe := fix.NewDedupeLRUFunc()
	validated := stream.Filter(ctx, func(ev trip.DrivingEvent) bool {
		if err := ev.Validate(); err != nil {
			d.logger.Error("Invalid driving event", "kind", ev.Kind, "error", err)
			return false
		}
		if ev.DeviceID != d.DeviceID {
			d.logger.Error("Invalid event, mismatched device", "want", d.DeviceID, "got", ev.DeviceID)
			return false
		}
		if !dedupe(ev.Fix) {
			d.logger.Warn("Deduped driving event", "kind", ev.Kind, "recorded_at", ev.Fix.RecordedAt)
			return false
		}
		return true
	}, in)

	// Classification is sequential over the event order; the previous
	// fix anchors the implied-speed rule.
	var prev *fix.Fix
	classified := stream.Transform(ctx, func(ev trip.DrivingEvent) trip.DrivingEvent {
		prior := ev.Fix.Annotation
		ev.Fix.Annotation = anomaly.Classify(prev, ev.Fix.Fix, &prior, nil)
		cur := ev.Fix.Fix
		prev = &cur
		return ev
	}, validated)

	out := make(chan trip.Delta)
	d.State.Waiting.Add(1)
	go func() {
		defer d.State.Waiting.Done()
		defer close(out)
		defer func() {
			d.logger.Info("ProcessEvents done",
				"elapsed", time.Since(started).Round(time.Millisecond))
		}()

		for ev := range classified {
			delta, err := d.ApplyDrivingEvent(ev)
			if err != nil {
				d.logger.Warn("Dropping driving event", "kind", ev.Kind, "error", err)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- delta:
			}
		}
	}()
	return out, nil
}

// ProcessEventsReader decodes newline-delimited JSON driving events
// from in and runs them through ProcessEvents, returning the deltas in
// order. The first decode error ends the read but does not discard
// events already decoded.
func (d *Device) ProcessEventsReader(ctx context.Context, in io.Reader) ([]trip.Delta, error) {
	evs, decodeErrs := stream.NDJSON[trip.DrivingEvent](ctx, in)
	deltas, err := d.ProcessEvents(ctx, evs)
	if err != nil {
		return nil, err
	}
	collected := stream.Collect(ctx, deltas)
	if err := <-decodeErrs; err != nil {
		d.logger.Error("Failed to decode event stream", "error", err)
		return collected, err
	}
	return collected, nil
}
