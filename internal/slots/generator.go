package slots

import "fmt"

// Slot is one fixed time-of-day interval. ID is the 1-based position in the
// generated day, which is also the key stored in the time_slots table.
type Slot struct {
	ID          int    `json:"id"`
	Label       string `json:"label"`
	StartMinute int    `json:"-"` // minutes after local midnight
	EndMinute   int    `json:"-"`
}

// Generate splits [startHour, endHour) into contiguous slots of slotMinutes.
// A trailing remainder shorter than slotMinutes is dropped.
func Generate(startHour, endHour, slotMinutes int) []Slot {
	if endHour <= startHour || slotMinutes <= 0 {
		return []Slot{}
	}

	windowEnd := endHour * 60
	out := make([]Slot, 0, (endHour-startHour)*60/slotMinutes)
	for start := startHour * 60; start+slotMinutes <= windowEnd; start += slotMinutes {
		end := start + slotMinutes
		out = append(out, Slot{
			ID:          len(out) + 1,
			Label:       FormatClock(start) + " - " + FormatClock(end),
			StartMinute: start,
			EndMinute:   end,
		})
	}
	return out
}

// FormatClock renders minutes after midnight as "h:mm AM|PM".
func FormatClock(minuteOfDay int) string {
	hour := (minuteOfDay / 60) % 24
	minute := minuteOfDay % 60

	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, minute, period)
}

// Lookup returns the slot with the given id.
func Lookup(all []Slot, id int) (Slot, bool) {
	if id < 1 || id > len(all) {
		return Slot{}, false
	}
	s := all[id-1]
	return s, s.ID == id
}
