package schedule

import "time"

const ReasonBooked = "already booked"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps is the half-open overlap test: [s1,e1) and [s2,e2) conflict
// iff s1 < e2 and s2 < e1. Touching endpoints do not conflict.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Booking is an occupied interval on a veterinarian's calendar. The
// caller must pre-filter the set to one veterinarian and to statuses
// that occupy calendar time, and exclude the appointment being updated.
type Booking struct {
	ID    string
	Start time.Time
	End   time.Time
}

func FindConflict(start, end time.Time, bookings []Booking) (Booking, bool) {
	candidate := Interval{Start: start, End: end}
	for _, b := range bookings {
		if Overlaps(candidate, Interval{Start: b.Start, End: b.End}) {
			return b, true
		}
	}
	return Booking{}, false
}

func HasConflict(start, end time.Time, bookings []Booking) bool {
	_, found := FindConflict(start, end, bookings)
	return found
}

// AnnotateSlots marks generated slots that overlap an existing booking
// as unavailable. Returns the number of slots left available.
func AnnotateSlots(slots []Slot, duration int, bookings []Booking) int {
	available := 0
	for i := range slots {
		end := slots[i].DateTime.Add(time.Duration(duration) * time.Minute)
		if HasConflict(slots[i].DateTime, end, bookings) {
			slots[i].Available = false
			slots[i].Reason = ReasonBooked
			continue
		}
		available++
	}
	return available
}
