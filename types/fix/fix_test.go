package fix

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func ptr(v float64) *float64 { return &v }

func valid() Fix {
	at := time.Unix(1700000000, 0)
	return Fix{
		ID:         "fix-1",
		DeviceID:   "dev-1",
		Lat:        46.8721,
		Lon:        -113.9940,
		RecordedAt: at,
		ServerTime: at,
	}
}

func TestValidate(t *testing.T) {
	f := valid()
	if err := f.Validate(); err != nil {
		t.Errorf("valid fix rejected: %v", err)
	}

	cases := map[string]func(*Fix){
		"empty device":      func(f *Fix) { f.DeviceID = "" },
		"lat out of range":  func(f *Fix) { f.Lat = 90.1 },
		"lon out of range":  func(f *Fix) { f.Lon = -180.1 },
		"negative accuracy": func(f *Fix) { f.Accuracy = ptr(-1) },
		"negative speed":    func(f *Fix) { f.Speed = ptr(-0.5) },
		"bearing 360":       func(f *Fix) { f.Bearing = ptr(360) },
		"zero recorded_at":  func(f *Fix) { f.RecordedAt = time.Time{} },
	}
	for name, mutate := range cases {
		f := valid()
		mutate(&f)
		if err := f.Validate(); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestValidateClockSkew(t *testing.T) {
	f := valid()
	f.RecordedAt = f.ServerTime.Add(10 * time.Second)
	if err := f.ValidateWithSkew(30 * time.Second); err != nil {
		t.Errorf("10s ahead within 30s allowance rejected: %v", err)
	}
	f.RecordedAt = f.ServerTime.Add(time.Minute)
	if err := f.ValidateWithSkew(30 * time.Second); err == nil {
		t.Error("60s ahead of server time accepted")
	}
}

func TestStatusJSON(t *testing.T) {
	for _, s := range []Status{StatusNormal, StatusSuspected, StatusMarked, StatusConfirmed} {
		b, err := json.Marshal(s)
		if err != nil {
			t.Fatal(err)
		}
		var back Status
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatal(err)
		}
		if back != s {
			t.Errorf("%v round-tripped to %v via %s", s, back, b)
		}
	}
	var s Status
	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("unknown status accepted")
	}
}

func TestIsHuman(t *testing.T) {
	if StatusNormal.IsHuman() || StatusSuspected.IsHuman() {
		t.Error("computed status reported as human")
	}
	if !StatusMarked.IsHuman() || !StatusConfirmed.IsHuman() {
		t.Error("human status not reported as human")
	}
}

func TestSlicesSortFunc(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	a := Annotated{Fix: Fix{ID: "a", RecordedAt: t0.Add(time.Second)}}
	b := Annotated{Fix: Fix{ID: "b", RecordedAt: t0}}
	c := Annotated{Fix: Fix{ID: "c", RecordedAt: t0, Accuracy: ptr(5)}}
	d := Annotated{Fix: Fix{ID: "d", RecordedAt: t0, Accuracy: ptr(5)}}

	got := []Annotated{a, d, c, b}
	slices.SortFunc(got, SlicesSortFunc)

	wantIDs := []string{"b", "c", "d", "a"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Fatalf("order %v, want %v", ids(got), wantIDs)
		}
	}
}

func ids(fixes []Annotated) []string {
	out := make([]string, len(fixes))
	for i := range fixes {
		out[i] = fixes[i].ID
	}
	return out
}

func TestDedupeLRUFunc(t *testing.T) {
	seen := NewDedupeLRUFunc()

	f := Annotated{Fix: valid()}
	if !seen(f) {
		t.Error("first sighting reported as duplicate")
	}
	if seen(f) {
		t.Error("replay not caught")
	}

	g := f
	g.Fix.Lat += 0.0001
	if !seen(g) {
		t.Error("distinct fix reported as duplicate")
	}

	// The annotation is not part of identity; a re-annotated replay is
	// still a replay.
	h := f
	h.Annotation = Annotation{Status: StatusSuspected, Reason: ReasonLowAccuracy}
	if seen(h) {
		t.Error("re-annotated replay not caught")
	}
}
