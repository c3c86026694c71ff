package api

import (
	"github.com/roamtrack/tripd/geo/anomaly"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
)

// ClassifyFix annotates cur against its predecessor. Stateless;
// pipelines should prefer ProcessEvents, which carries the predecessor
// and the prior annotation for them.
func ClassifyFix(prev *fix.Fix, cur fix.Fix, cfg *params.AnomalyConfig) fix.Annotated {
	return fix.Annotated{
		Fix:        cur,
		Annotation: anomaly.Classify(prev, cur, nil, cfg),
	}
}
