package params

import "time"

// AnomalyConfig holds the thresholds for single-fix anomaly classification.
type AnomalyConfig struct {
	// MaxAccuracyMeters is the reported-accuracy ceiling.
	// A fix reporting a larger accuracy radius is suspected of being junk.
	MaxAccuracyMeters float64

	// MaxPlausibleSpeedMPS bounds the speed implied by consecutive fixes.
	// Anything faster is a teleportation, not travel.
	MaxPlausibleSpeedMPS float64
}

var DefaultAnomalyConfig = &AnomalyConfig{
	MaxAccuracyMeters:    100.0,
	MaxPlausibleSpeedMPS: 83.0, // ~300 km/h
}

// SegmenterConfig holds the dwell/drive segmentation parameters.
type SegmenterConfig struct {
	// DwellRadiusMeters is the cluster radius. Fixes within this distance
	// of the running cluster centroid extend the candidate dwell.
	DwellRadiusMeters float64

	// MinDwellDuration is the minimum cluster time span for a dwell.
	// Shorter clusters (a red light, a greeting) dissolve back into motion.
	MinDwellDuration time.Duration

	// SplitGap separates streamed histories by time. A gap longer than
	// this flushes the accumulated window before the next fix starts a
	// new one.
	SplitGap time.Duration
}

var DefaultSegmenterConfig = &SegmenterConfig{
	DwellRadiusMeters: 50.0,
	MinDwellDuration:  5 * time.Minute,
	SplitGap:          24 * time.Hour,
}

type LineStringSimplificationConfig struct {
	DouglasPeuckerThreshold float64
}

var DefaultLineStringSimplificationConfig = &LineStringSimplificationConfig{
	DouglasPeuckerThreshold: 0.00008,
}

// LifecycleConfig holds the trip state machine parameters.
type LifecycleConfig struct {
	// ClockSkewAllowance is how far a client-reported time may lead the
	// server ingestion time before the fix is rejected.
	ClockSkewAllowance time.Duration

	// EventReorderWindow tolerates network-retry reordering.
	// Events older than the device cursor by more than this are rejected;
	// within it, they are applied floored at the cursor.
	EventReorderWindow time.Duration
}

var DefaultLifecycleConfig = &LifecycleConfig{
	ClockSkewAllowance: 30 * time.Second,
	EventReorderWindow: 30 * time.Second,
}
