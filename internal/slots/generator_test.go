package slots

import (
	"reflect"
	"testing"
)

func labels(ss []Slot) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Label
	}
	return out
}

func TestGenerate_MorningHours(t *testing.T) {
	got := labels(Generate(9, 12, 60))
	want := []string{"9:00 AM - 10:00 AM", "10:00 AM - 11:00 AM", "11:00 AM - 12:00 PM"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGenerate_HalfHourAcrossNoon(t *testing.T) {
	got := labels(Generate(11, 13, 30))
	want := []string{
		"11:00 AM - 11:30 AM",
		"11:30 AM - 12:00 PM",
		"12:00 PM - 12:30 PM",
		"12:30 PM - 1:00 PM",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGenerate_MidnightRendersAsTwelve(t *testing.T) {
	got := labels(Generate(0, 1, 60))
	if got[0] != "12:00 AM - 1:00 AM" {
		t.Fatalf("got %q", got[0])
	}
	got = labels(Generate(23, 24, 60))
	if got[0] != "11:00 PM - 12:00 AM" {
		t.Fatalf("got %q", got[0])
	}
}

func TestGenerate_EmptyWindow(t *testing.T) {
	for _, tc := range [][3]int{{9, 9, 60}, {17, 9, 60}, {9, 17, 0}} {
		if got := Generate(tc[0], tc[1], tc[2]); len(got) != 0 {
			t.Fatalf("Generate%v = %v, want empty", tc, got)
		}
	}
}

func TestGenerate_CoversWindowContiguously(t *testing.T) {
	for _, minutes := range []int{30, 60} {
		for start := 0; start < 24; start++ {
			for end := start + 1; end <= 24; end++ {
				got := Generate(start, end, minutes)
				want := (end - start) * 60 / minutes
				if len(got) != want {
					t.Fatalf("Generate(%d,%d,%d): %d slots, want %d", start, end, minutes, len(got), want)
				}
				if got[0].StartMinute != start*60 || got[len(got)-1].EndMinute != end*60 {
					t.Fatalf("Generate(%d,%d,%d) does not span the window", start, end, minutes)
				}
				for i := range got {
					if got[i].ID != i+1 {
						t.Fatalf("slot %d has id %d", i, got[i].ID)
					}
					if i > 0 && got[i].StartMinute != got[i-1].EndMinute {
						t.Fatalf("gap or overlap between %q and %q", got[i-1].Label, got[i].Label)
					}
				}
			}
		}
	}
}

func TestLookup(t *testing.T) {
	all := Generate(9, 17, 60)
	s, ok := Lookup(all, 3)
	if !ok || s.Label != "11:00 AM - 12:00 PM" {
		t.Fatalf("Lookup(3) = %+v, %v", s, ok)
	}
	if _, ok := Lookup(all, 0); ok {
		t.Fatal("Lookup(0) should miss")
	}
	if _, ok := Lookup(all, 9); ok {
		t.Fatal("Lookup(9) should miss")
	}
}
