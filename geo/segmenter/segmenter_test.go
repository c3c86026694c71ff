package segmenter

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"github.com/roamtrack/tripd/types/segmented"
)

var epoch = time.Unix(1700000000, 0)

func at(sec int) time.Time { return epoch.Add(time.Duration(sec) * time.Second) }

func sample(lat, lon float64, t time.Time) fix.Annotated {
	return fix.Annotated{
		Fix: fix.Fix{
			DeviceID:   "dev-1",
			Lat:        lat,
			Lon:        lon,
			RecordedAt: t,
			ServerTime: t,
		},
		Annotation: fix.Annotation{Status: fix.StatusNormal},
	}
}

func marked(lat, lon float64, t time.Time) fix.Annotated {
	f := sample(lat, lon, t)
	f.Annotation = fix.Annotation{Status: fix.StatusMarked, Reason: fix.ReasonUserMarked}
	return f
}

// checkPartition asserts that dwells and drives together cover
// [first, last] of the input with no gaps and no overlaps.
func checkPartition(t *testing.T, fixes []fix.Annotated, dwells []segmented.DwellInterval, drives []segmented.DriveSegment) {
	t.Helper()

	type interval struct {
		start, end time.Time
		kind       string
	}
	all := []interval{}
	for _, d := range dwells {
		all = append(all, interval{d.Start, d.End, "dwell"})
	}
	for _, d := range drives {
		all = append(all, interval{d.Start, d.End, "drive"})
	}
	if len(all) == 0 {
		t.Fatal("empty partition")
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].start.Before(all[j-1].start); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}

	windowStart := fixes[0].RecordedAt
	windowEnd := fixes[len(fixes)-1].RecordedAt
	if !all[0].start.Equal(windowStart) {
		t.Errorf("partition starts at %v, window starts at %v", all[0].start, windowStart)
	}
	if !all[len(all)-1].end.Equal(windowEnd) {
		t.Errorf("partition ends at %v, window ends at %v", all[len(all)-1].end, windowEnd)
	}
	for i := 1; i < len(all); i++ {
		if !all[i].start.Equal(all[i-1].end) {
			t.Errorf("%s[%v,%v] does not abut %s[%v,%v]",
				all[i-1].kind, all[i-1].start, all[i-1].end,
				all[i].kind, all[i].start, all[i].end)
		}
	}
}

// A 90-second stop at a light is motion, not a dwell.
func TestSegmentTrafficLightIsNotADwell(t *testing.T) {
	fixes := []fix.Annotated{}
	// Driving north, ~111m per 10s.
	for i := 0; i < 6; i++ {
		fixes = append(fixes, sample(46.8700+float64(i)*0.001, -113.9940, at(i*10)))
	}
	// Stationary for 90s with a couple meters of jitter.
	for i := 0; i < 9; i++ {
		fixes = append(fixes, sample(46.8760+float64(i%2)*0.00002, -113.9940, at(60+i*10)))
	}
	// Driving again.
	for i := 1; i <= 6; i++ {
		fixes = append(fixes, sample(46.8760+float64(i)*0.001, -113.9940, at(150+i*10)))
	}

	dwells, drives, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 0 {
		t.Errorf("got %d dwells, want 0", len(dwells))
	}
	if len(drives) != 1 {
		t.Fatalf("got %d drives, want 1", len(drives))
	}
	checkPartition(t, fixes, dwells, drives)
}

func TestSegmentDwellThenDrive(t *testing.T) {
	fixes := []fix.Annotated{}
	// Ten minutes parked, fixes within ~6m of each other.
	for i := 0; i <= 10; i++ {
		fixes = append(fixes, sample(46.8700+float64(i%2)*0.00005, -113.9940, at(i*60)))
	}
	// Then drive away.
	for i := 1; i <= 5; i++ {
		fixes = append(fixes, sample(46.8700+float64(i)*0.001, -113.9940, at(600+i*10)))
	}

	dwells, drives, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 1 || len(drives) != 1 {
		t.Fatalf("got %d dwells, %d drives, want 1 and 1", len(dwells), len(drives))
	}
	if dwells[0].DurationS < 600 {
		t.Errorf("dwell duration %v, want >= 600s", dwells[0].DurationS)
	}
	if !drives[0].Start.Equal(dwells[0].End) {
		t.Errorf("drive starts at %v, dwell ends at %v", drives[0].Start, dwells[0].End)
	}
	if drives[0].DistanceKM < 0.4 {
		t.Errorf("drive distance %v km, want ~0.55", drives[0].DistanceKM)
	}
	checkPartition(t, fixes, dwells, drives)
}

func TestSegmentAllStationary(t *testing.T) {
	fixes := []fix.Annotated{}
	for i := 0; i <= 10; i++ {
		fixes = append(fixes, sample(46.8700+float64(i%3)*0.00004, -113.9940, at(i*60)))
	}
	dwells, drives, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 1 || len(drives) != 0 {
		t.Fatalf("got %d dwells, %d drives, want 1 and 0", len(dwells), len(drives))
	}
	checkPartition(t, fixes, dwells, drives)
}

func TestSegmentAllMoving(t *testing.T) {
	fixes := []fix.Annotated{}
	for i := 0; i < 10; i++ {
		fixes = append(fixes, sample(46.8700+float64(i)*0.01, -113.9940, at(i*60)))
	}
	dwells, drives, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 0 || len(drives) != 1 {
		t.Fatalf("got %d dwells, %d drives, want 0 and 1", len(dwells), len(drives))
	}
	if drives[0].FixCount != len(fixes) {
		t.Errorf("drive has %d members, want %d", drives[0].FixCount, len(fixes))
	}
	checkPartition(t, fixes, dwells, drives)
}

func TestSegmentDwellDriveDwell(t *testing.T) {
	fixes := []fix.Annotated{}
	for i := 0; i <= 6; i++ { // home, 6 minutes
		fixes = append(fixes, sample(46.8700, -113.9940, at(i*60)))
	}
	for i := 1; i <= 5; i++ { // drive
		fixes = append(fixes, sample(46.8700+float64(i)*0.002, -113.9940, at(360+i*60)))
	}
	for i := 0; i <= 6; i++ { // work, 6 minutes
		fixes = append(fixes, sample(46.8810, -113.9940, at(660+i*60)))
	}

	dwells, drives, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 2 {
		t.Fatalf("got %d dwells, want 2", len(dwells))
	}
	if len(drives) != 1 {
		t.Fatalf("got %d drives, want 1", len(drives))
	}
	checkPartition(t, fixes, dwells, drives)
}

// A marked outlier inside a dwell must not fracture it.
func TestSegmentMarkedFixBridged(t *testing.T) {
	fixes := []fix.Annotated{}
	for i := 0; i <= 10; i++ {
		if i == 5 {
			// GPS glitch 5km away, marked by the user.
			fixes = append(fixes, marked(46.9200, -113.9940, at(i*60)))
			continue
		}
		fixes = append(fixes, sample(46.8700, -113.9940, at(i*60)))
	}

	dwells, drives, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 1 || len(drives) != 0 {
		t.Fatalf("got %d dwells, %d drives, want 1 and 0", len(dwells), len(drives))
	}
	if dwells[0].FixCount != 10 {
		t.Errorf("dwell has %d members, want 10 (marked fix excluded)", dwells[0].FixCount)
	}
	checkPartition(t, fixes, dwells, drives)
}

// Marked fixes at the window edges stretch the neighboring dwell so the
// partition still covers the full input span.
func TestSegmentMarkedEdgesBridged(t *testing.T) {
	fixes := []fix.Annotated{marked(46.9200, -113.9940, at(0))}
	for i := 1; i <= 11; i++ {
		fixes = append(fixes, sample(46.8700, -113.9940, at(i*60)))
	}
	fixes = append(fixes, marked(46.9300, -113.9940, at(720)))

	dwells, drives, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 1 || len(drives) != 0 {
		t.Fatalf("got %d dwells, %d drives, want 1 and 0", len(dwells), len(drives))
	}
	if !dwells[0].Start.Equal(at(0)) || !dwells[0].End.Equal(at(720)) {
		t.Errorf("dwell [%v, %v], want [%v, %v]", dwells[0].Start, dwells[0].End, at(0), at(720))
	}
	if dwells[0].DurationS != 720 {
		t.Errorf("dwell duration %v, want 720", dwells[0].DurationS)
	}
	checkPartition(t, fixes, dwells, drives)
}

func TestSegmentDegenerateInputs(t *testing.T) {
	for name, fixes := range map[string][]fix.Annotated{
		"empty":  {},
		"single": {sample(46.87, -113.99, at(0))},
		"only one usable": {
			sample(46.87, -113.99, at(0)),
			marked(46.87, -113.99, at(60)),
		},
	} {
		dwells, drives, err := Segment(fixes, nil)
		if err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if len(dwells) != 0 || len(drives) != 0 {
			t.Errorf("%s: got %d dwells, %d drives, want none", name, len(dwells), len(drives))
		}
	}
}

func TestSegmentRejectsOutOfOrder(t *testing.T) {
	fixes := []fix.Annotated{
		sample(46.87, -113.99, at(60)),
		sample(46.87, -113.99, at(0)),
	}
	if _, _, err := Segment(fixes, nil); err == nil {
		t.Fatal("out-of-order input accepted")
	}
}

func TestSegmentDeterministic(t *testing.T) {
	fixes := []fix.Annotated{}
	for i := 0; i <= 10; i++ {
		fixes = append(fixes, sample(46.8700+float64(i%2)*0.00005, -113.9940, at(i*60)))
	}
	for i := 1; i <= 5; i++ {
		fixes = append(fixes, sample(46.8700+float64(i)*0.002, -113.9940, at(600+i*60)))
	}

	d1, r1, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	d2, r2, err := Segment(fixes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d1, d2) || !reflect.DeepEqual(r1, r2) {
		t.Error("identical input produced different partitions")
	}
}

func TestSegmentCustomConfig(t *testing.T) {
	fixes := []fix.Annotated{}
	for i := 0; i < 9; i++ { // 80s stationary
		fixes = append(fixes, sample(46.8700, -113.9940, at(i*10)))
	}
	fixes = append(fixes, sample(46.8800, -113.9940, at(90)))

	cfg := &params.SegmenterConfig{
		DwellRadiusMeters: params.DefaultSegmenterConfig.DwellRadiusMeters,
		MinDwellDuration:  time.Minute,
	}
	dwells, _, err := Segment(fixes, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(dwells) != 1 {
		t.Fatalf("got %d dwells with 1m minimum, want 1", len(dwells))
	}
}

func TestStreamSplitsOnGap(t *testing.T) {
	in := make(chan fix.Annotated)
	out := NewState(nil).Stream(context.Background(), in)

	go func() {
		defer close(in)
		for i := 0; i <= 10; i++ {
			in <- sample(46.8700, -113.9940, at(i*60))
		}
		// Two days of silence ends the first window.
		for i := 0; i <= 10; i++ {
			in <- sample(46.9500, -114.1000, at(200000+i*60))
		}
	}()

	windows := []Window{}
	for w := range out {
		windows = append(windows, w)
	}
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	for i, w := range windows {
		if len(w.Dwells) != 1 || len(w.Drives) != 0 {
			t.Errorf("window %d: %d dwells, %d drives", i, len(w.Dwells), len(w.Drives))
		}
	}
}
