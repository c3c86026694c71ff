// Package anomaly scores single fixes against their predecessor and
// the configured thresholds. It is pure: no state, no logging, no I/O.
package anomaly

import (
	"context"

	"github.com/roamtrack/tripd/geo/geomath"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
)

// Classify annotates cur given its predecessor (nil for the first fix
// of a stream) and a prior annotation, if any.
//
// Rules in order, first match wins:
//  1. A prior human verdict (marked/confirmed) passes through unchanged.
//  2. Reported accuracy above MaxAccuracyMeters: suspected, low_accuracy.
//  3. Implied speed from prev above MaxPlausibleSpeedMPS: suspected,
//     impossible_speed.
//  4. Otherwise normal.
//
// A nil cfg uses params.DefaultAnomalyConfig.
func Classify(prev *fix.Fix, cur fix.Fix, prior *fix.Annotation, cfg *params.AnomalyConfig) fix.Annotation {
	if cfg == nil {
		cfg = params.DefaultAnomalyConfig
	}

	// Human verdicts are never downgraded by recomputation.
	if prior != nil && prior.Status.IsHuman() {
		return *prior
	}

	if cur.Accuracy != nil && *cur.Accuracy > cfg.MaxAccuracyMeters {
		return fix.Annotation{Status: fix.StatusSuspected, Reason: fix.ReasonLowAccuracy}
	}

	if prev != nil {
		implied := geomath.ImpliedSpeedMPS(prev.Point(), cur.Point(), prev.RecordedAt, cur.RecordedAt)
		if implied > cfg.MaxPlausibleSpeedMPS {
			return fix.Annotation{Status: fix.StatusSuspected, Reason: fix.ReasonImpossibleSpeed}
		}
	}

	return fix.Annotation{Status: fix.StatusNormal}
}

// Stream classifies a channel of fixes against their running
// predecessor, in arrival order.
func Stream(ctx context.Context, cfg *params.AnomalyConfig, in <-chan fix.Fix) <-chan fix.Annotated {
	out := make(chan fix.Annotated)
	go func() {
		defer close(out)
		var prev *fix.Fix
		for f := range in {
			f := f
			annotated := fix.Annotated{
				Fix:        f,
				Annotation: Classify(prev, f, nil, cfg),
			}
			select {
			case <-ctx.Done():
				return
			case out <- annotated:
				prev = &f
			}
		}
	}()
	return out
}
