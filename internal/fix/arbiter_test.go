package fix

import (
	"math"
	"testing"
)

func mkFix(ts int64, acc float64, provider string) Fix {
	f := New()
	f.Timestamp = ts
	f.Accuracy = acc
	f.Provider = provider
	f.Lat = 47.6
	f.Lon = -122.3
	f.Valid = true
	return f
}

func TestAccept_NoCurrentAlwaysAccepts(t *testing.T) {
	if !Accept(nil, mkFix(0, 5000, "x")) {
		t.Fatalf("expected accept without current")
	}
}

func TestAccept_Rules(t *testing.T) {
	const T = 1_700_000_000
	cur := mkFix(T, 50, "gps")

	cases := []struct {
		name string
		cand Fix
		want bool
	}{
		{name: "RelocationBeatsAccuracy", cand: mkFix(T+61, 5000, "network"), want: true},
		{name: "ExactlyOneMinuteIsNotRelocation", cand: mkFix(T+60, 5000, "network"), want: false},
		{name: "MoreAccurateEvenIfOlder", cand: mkFix(T-5, 40, "network"), want: true},
		{name: "NewerSameAccuracy", cand: mkFix(T+1, 50, "network"), want: true},
		{name: "SameTimeSameAccuracy", cand: mkFix(T, 50, "gps"), want: false},
		{name: "NewerSlightlyWorseSameProvider", cand: mkFix(T+1, 250, "gps"), want: true},
		{name: "NewerSlightlyWorseOtherProvider", cand: mkFix(T+1, 250, "network"), want: false},
		{name: "NewerSeverelyWorseSameProvider", cand: mkFix(T+1, 350, "gps"), want: false},
		{name: "OlderWorse", cand: mkFix(T-1, 60, "gps"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := cur
			if got := Accept(&c, tc.cand); got != tc.want {
				t.Fatalf("Accept()=%v want %v", got, tc.want)
			}
		})
	}
}

func TestAccept_UnknownAccuracyComparesEqual(t *testing.T) {
	cur := mkFix(100, Unknown, "nmea")
	if !Accept(&cur, mkFix(101, Unknown, "nmea")) {
		t.Fatalf("newer fix with unknown accuracy should be accepted")
	}
	if Accept(&cur, mkFix(100, Unknown, "nmea")) {
		t.Fatalf("same-time fix with unknown accuracy should be rejected")
	}
	if Accept(&cur, mkFix(99, 3, "nmea")) {
		t.Fatalf("older fix must not win against unknown accuracy")
	}
}

func TestDistance_OffsetRoundTrip(t *testing.T) {
	lat, lon := Offset(47.6, -122.3, 1000, 90)
	a := Fix{Lat: 47.6, Lon: -122.3}
	b := Fix{Lat: lat, Lon: lon}
	if d := Distance(a, b); math.Abs(d-1000) > 0.01 {
		t.Fatalf("distance=%f want 1000", d)
	}
	if d := Distance(a, a); d != 0 {
		t.Fatalf("distance to self=%f want 0", d)
	}
}

func TestFix_InRangeAndAge(t *testing.T) {
	f := New()
	if f.Valid || f.Timestamp != 0 {
		t.Fatalf("New() must be invalid with zero timestamp")
	}
	f.Lat, f.Lon = 90, 0
	if f.InRange() {
		t.Fatalf("lat=90 must be out of range")
	}
	f.Lat, f.Lon = 10, -180
	if f.InRange() {
		t.Fatalf("lon=-180 must be out of range")
	}
	f.Lat, f.Lon = 10, 179.9
	if !f.InRange() {
		t.Fatalf("expected in range")
	}
	f.Timestamp = 1000
	if got := f.Age(f.Time().Add(30e9)); got.Seconds() != 30 {
		t.Fatalf("age=%v want 30s", got)
	}
}
