package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in     string
		minute int
	}{
		{"00:00", 0},
		{"09:30", 570},
		{"17:00", 1020},
		{"23:59", 1439},
	}
	for _, c := range cases {
		got, err := ParseClock(c.in)
		if err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", c.in, err)
		}
		if got != c.minute {
			t.Fatalf("ParseClock(%q) = %d, want %d", c.in, got, c.minute)
		}
		if back := FormatClock(got); back != c.in {
			t.Fatalf("FormatClock(%d) = %q, want %q", got, back, c.in)
		}
	}
}

func TestParseClockRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "9:30", "0930", "24:00", "12:60", "ab:cd", "12:3"} {
		if _, err := ParseClock(in); err == nil {
			t.Fatalf("ParseClock(%q) should fail", in)
		} else {
			var ite *InvalidTimeError
			if !errors.As(err, &ite) {
				t.Fatalf("ParseClock(%q) error type = %T, want *InvalidTimeError", in, err)
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-08")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if FormatDate(d) != "2026-03-08" {
		t.Fatalf("round trip = %q", FormatDate(d))
	}
	if d.Weekday() != time.Sunday {
		t.Fatalf("2026-03-08 weekday = %s, want Sunday", d.Weekday())
	}
	for _, in := range []string{"", "03/08/2026", "2026-13-01", "2026-02-30"} {
		if _, err := ParseDate(in); err == nil {
			t.Fatalf("ParseDate(%q) should fail", in)
		}
	}
}

func TestLoadZone(t *testing.T) {
	if _, err := LoadZone("America/New_York"); err != nil {
		t.Fatalf("LoadZone failed: %v", err)
	}
	for _, in := range []string{"", "Mars/Olympus"} {
		if _, err := LoadZone(in); err == nil {
			t.Fatalf("LoadZone(%q) should fail", in)
		}
	}
}

func TestInstantAtAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}

	// Winter: Eastern is UTC-5, so 09:00 local is 14:00 UTC.
	winter, _ := ParseDate("2026-01-26")
	got := InstantAt(winter, 9*60, loc)
	want := time.Date(2026, 1, 26, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("winter 09:00 = %s, want %s", got.Format(time.RFC3339), want.Format(time.RFC3339))
	}

	// Summer: Eastern is UTC-4, so 09:00 local is 13:00 UTC.
	summer, _ := ParseDate("2026-07-20")
	got = InstantAt(summer, 9*60, loc)
	want = time.Date(2026, 7, 20, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("summer 09:00 = %s, want %s", got.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestCompareInstants(t *testing.T) {
	a := time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)
	b := a.Add(time.Minute)
	if CompareInstants(a, b) != -1 || CompareInstants(b, a) != 1 || CompareInstants(a, a) != 0 {
		t.Fatal("CompareInstants is not a total order over the fixture")
	}
}
