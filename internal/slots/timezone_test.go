package slots

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestToUTC_FixedOffset(t *testing.T) {
	loc := time.FixedZone("UTC+1", 3600)
	start, end, err := ToUTC(mustDate(t, "2024-06-01"), "2:00 PM - 3:00 PM", loc)
	if err != nil {
		t.Fatalf("ToUTC: %v", err)
	}
	if got := start.Format(time.RFC3339); got != "2024-06-01T13:00:00Z" {
		t.Fatalf("start = %s", got)
	}
	if got := end.Format(time.RFC3339); got != "2024-06-01T14:00:00Z" {
		t.Fatalf("end = %s", got)
	}
}

func TestToUTC_NamedZoneHandlesDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	winter, _, err := ToUTC(mustDate(t, "2024-01-15"), "9:00 AM - 10:00 AM", loc)
	if err != nil {
		t.Fatal(err)
	}
	summer, _, err := ToUTC(mustDate(t, "2024-07-15"), "9:00 AM - 10:00 AM", loc)
	if err != nil {
		t.Fatal(err)
	}
	if winter.Hour() != 9 || summer.Hour() != 8 {
		t.Fatalf("winter=%s summer=%s", winter, summer)
	}
}

func TestToUTC_NoonAndMidnight(t *testing.T) {
	start, end, err := ToUTC(mustDate(t, "2024-06-01"), "12:00 PM - 12:30 PM", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if start.Hour() != 12 || end.Minute() != 30 {
		t.Fatalf("start=%s end=%s", start, end)
	}

	start, end, err = ToUTC(mustDate(t, "2024-06-01"), "11:00 PM - 12:00 AM", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if start.Hour() != 23 || end.Day() != 2 || end.Hour() != 0 {
		t.Fatalf("start=%s end=%s", start, end)
	}
}

func TestToUTC_RoundTripsGeneratedLabels(t *testing.T) {
	day := mustDate(t, "2024-06-01")
	for _, s := range Generate(0, 24, 30) {
		start, end, err := ToUTC(day, s.Label, time.UTC)
		if err != nil {
			t.Fatalf("%q: %v", s.Label, err)
		}
		if got := int(start.Sub(day).Minutes()); got != s.StartMinute {
			t.Fatalf("%q: start minute %d, want %d", s.Label, got, s.StartMinute)
		}
		if got := int(end.Sub(day).Minutes()); got != s.EndMinute {
			t.Fatalf("%q: end minute %d, want %d", s.Label, got, s.EndMinute)
		}
	}
}

func TestParseLabel_Malformed(t *testing.T) {
	bad := []string{
		"",
		"9:00 AM",
		"9:00 AM -10:00 AM",
		"9 AM - 10 AM",
		"13:00 PM - 2:00 PM",
		"9:00 XM - 10:00 AM",
		"9:60 AM - 10:00 AM",
		"9:00 AM - 10:00 AM - 11:00 AM",
	}
	for _, label := range bad {
		if _, err := ParseLabel(label); !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("ParseLabel(%q) err = %v, want ErrInvalidLabel", label, err)
		}
		if _, _, err := ToUTC(time.Now(), label, time.UTC); !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("ToUTC(%q) err = %v, want ErrInvalidLabel", label, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if d.Location() != time.UTC || d.Hour() != 0 || d.Day() != 1 {
		t.Fatalf("unexpected date %s", d)
	}
	for _, s := range []string{"", "01/06/2024", "2024-13-01", "2024-06-01T00:00:00Z"} {
		if _, err := ParseDate(s); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q) err = %v", s, err)
		}
	}
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC) // already June 2nd in UTC+10
	if got := Today(now, loc).Format(DateLayout); got != "2024-06-02" {
		t.Fatalf("Today = %s", got)
	}
}
