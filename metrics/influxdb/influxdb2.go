package influxdb

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/trip"
)

// ExportTripDeltas posts trip snapshots to an InfluxDB Write API.
// Because it accepts a slice, use batches. The Write API will buffer
// and flush. The last error encountered is returned.
func ExportTripDeltas(deltas []trip.Delta) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	// Errors returns a channel for reading errors which occur during
	// async writes. Must be called before performing any writes for
	// errors to be collected. The chan is unbuffered and must be
	// drained or the writer will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, delta := range deltas {
		t := delta.Trip
		at := t.StartedAt
		if !t.EndedAt.IsZero() {
			at = t.EndedAt
		}
		p := influxdb2.NewPointWithMeasurement("trip").
			SetTime(at).
			AddTag("device", t.DeviceID).
			AddTag("trip", t.TripID).
			AddTag("state", t.State.String()).
			AddField("fix_count", t.FixCount).
			AddField("distance_km", t.DistanceKM).
			AddField("duration_s", t.DurationS).
			AddField("speed_max", t.MaxSpeedMPS).
			AddField("speed_avg", t.AvgSpeedMPS)

		if t.Origin != trip.ConditionNone {
			p.AddTag("origin", string(t.Origin))
		}
		if delta.Condition != trip.ConditionNone {
			p.AddField("condition", string(delta.Condition))
		}
		if delta.SummaryIssue != "" {
			p.AddField("summary_issue", delta.SummaryIssue)
		}
		if t.SpeedReported != nil {
			p.AddField("speed_reported_mean", t.SpeedReported.Mean)
			p.AddField("speed_reported_median", t.SpeedReported.Median)
		}
		if t.SpeedCalculated != nil {
			p.AddField("speed_calculated_mean", t.SpeedCalculated.Mean)
			p.AddField("speed_calculated_median", t.SpeedCalculated.Median)
		}

		writeAPI.WritePoint(p)
	}

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}

// ExportLastKnown posts one last-known fix per device, for liveness
// dashboards.
func ExportLastKnown(fixes []fix.Annotated) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for i := range fixes {
		f := &fixes[i]
		p := influxdb2.NewPointWithMeasurement("lastknown").
			SetTime(f.RecordedAt).
			AddTag("device", f.DeviceID).
			AddTag("status", f.Annotation.Status.String()).
			AddField("latitude", f.Lat).
			AddField("longitude", f.Lon)
		if f.Accuracy != nil {
			p.AddField("accuracy", *f.Accuracy)
		}
		if f.Speed != nil {
			p.AddField("speed", *f.Speed)
		}
		if f.Altitude != nil {
			p.AddField("elevation", *f.Altitude)
		}
		if f.Bearing != nil {
			p.AddField("heading", *f.Bearing)
		}
		if f.Annotation.Reason != "" {
			p.AddField("anomaly_reason", f.Annotation.Reason)
		}
		writeAPI.WritePoint(p)
	}

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
