package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-10-10", "2024/10/10", "20241010", "2024-10-10T00:00:00Z"} {
		got, ok := ParseTime(s)
		if !ok || !got.Equal(want) {
			t.Fatalf("%q: got %v ok=%v", s, got, ok)
		}
	}
	if _, ok := ParseTime("yesterday"); ok {
		t.Fatalf("garbage must not parse")
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(ts.Unix(), 10))
	if !ok || !got.Equal(ts) {
		t.Fatalf("unix seconds: %v", got)
	}
	got, ok = ParseTime(strconv.FormatInt(ts.UnixMilli(), 10))
	if !ok || !got.Equal(ts) {
		t.Fatalf("unix millis: %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestPeriodStart(t *testing.T) {
	thu := time.Date(2024, 6, 13, 15, 30, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"daily":   time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC),
		"weekly":  time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		"monthly": time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for period, want := range cases {
		if got := PeriodStart(thu, period); !got.Equal(want) {
			t.Fatalf("%s: got %v want %v", period, got, want)
		}
	}
	sun := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	if got := PeriodStart(sun, "weekly"); !got.Equal(cases["weekly"]) {
		t.Fatalf("sunday belongs to the week starting monday, got %v", got)
	}
}

func TestAlignFromTo(t *testing.T) {
	from, to := AlignFromTo(time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC), time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC), "monthly")
	if !from.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from %v", from)
	}
	if to.Month() != time.July || to.Day() != 31 {
		t.Fatalf("to %v", to)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" localhost:9092, ,broker2:9092 ")
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "broker2:9092" {
		t.Fatalf("unexpected %v", got)
	}
}
