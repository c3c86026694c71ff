package segmenter

import (
	"context"
	"time"

	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/segmented"
)

// Window is one contiguous run of fixes, partitioned.
type Window struct {
	Dwells []segmented.DwellInterval
	Drives []segmented.DriveSegment
}

// State accumulates fixes and flushes a partitioned Window whenever the
// stream goes discontinuous (time runs backwards, or a gap exceeds
// SplitGap) and once more when the input ends.
type State struct {
	Config   *params.SegmenterConfig
	Fixes    []fix.Annotated
	TimeLast time.Time
	ch       chan Window
}

func NewState(config *params.SegmenterConfig) *State {
	if config == nil {
		config = params.DefaultSegmenterConfig
	}
	return &State{
		Config: config,
		Fixes:  make([]fix.Annotated, 0),
		ch:     make(chan Window),
	}
}

func (s *State) Add(f fix.Annotated) {
	if s.IsDiscontinuous(f) {
		s.Flush()
	}
	s.TimeLast = f.RecordedAt
	s.Fixes = append(s.Fixes, f)
}

func (s *State) IsDiscontinuous(f fix.Annotated) bool {
	if s.TimeLast.IsZero() || len(s.Fixes) == 0 {
		return false
	}
	span := f.RecordedAt.Sub(s.TimeLast)
	return span < -1*time.Second || span > s.Config.SplitGap
}

// Flush partitions the accumulated run and resets. Runs that cannot be
// partitioned (fewer than 2 usable fixes, or out of order within the
// run) are discarded.
func (s *State) Flush() {
	if len(s.Fixes) >= 2 {
		dwells, drives, err := Segment(s.Fixes, s.Config)
		if err == nil && len(dwells)+len(drives) > 0 {
			s.ch <- Window{Dwells: dwells, Drives: drives}
		}
	}
	s.Fixes = make([]fix.Annotated, 0)
	s.TimeLast = time.Time{}
}

// Stream consumes fixes and emits a Window per contiguous run. The
// trailing run is flushed when the input closes; a history stream ends
// where the history ends.
func (s *State) Stream(ctx context.Context, in <-chan fix.Annotated) <-chan Window {
	go func() {
		defer close(s.ch)
		for f := range in {
			s.Add(f)
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
		s.Flush()
	}()
	return s.ch
}
