package schedule

import (
	"errors"
	"fmt"
	"time"
)

const DefaultSlotMinutes = 30

var (
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidTime     = errors.New("invalid time format")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidWeek     = errors.New("invalid weekly availability")
)

// DayHours is one weekday's working window in a veterinarian's
// recurring schedule. Times are local HH:MM clock values.
type DayHours struct {
	Start       string `bson:"start" json:"start"`
	End         string `bson:"end" json:"end"`
	IsAvailable bool   `bson:"isAvailable" json:"isAvailable"`
}

// Week maps lowercase weekday names (monday..sunday) to working hours.
type Week map[string]DayHours

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// ValidateWeek checks the full week shape once at the boundary where a
// veterinarian record is loaded, so lookups later never re-validate.
func ValidateWeek(week Week) error {
	for day, hours := range week {
		known := false
		for _, name := range weekdayNames {
			if name == day {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidWeek, day)
		}
		if !hours.IsAvailable {
			continue
		}
		start, err := ParseClockToMinutes(hours.Start)
		if err != nil {
			return fmt.Errorf("%w: %s start %q", ErrInvalidWeek, day, hours.Start)
		}
		end, err := ParseClockToMinutes(hours.End)
		if err != nil {
			return fmt.Errorf("%w: %s end %q", ErrInvalidWeek, day, hours.End)
		}
		if start >= end {
			return fmt.Errorf("%w: %s window %s-%s", ErrInvalidWeek, day, hours.Start, hours.End)
		}
	}
	return nil
}

// DefaultWeek returns a week with every day open on the same window.
// Used as the explicit fallback for veterinarians without configured hours.
func DefaultWeek(start, end string) Week {
	week := make(Week, len(weekdayNames))
	for _, name := range weekdayNames {
		week[name] = DayHours{Start: start, End: end, IsAvailable: true}
	}
	return week
}

// Slot is a transient candidate booking window. Never persisted.
type Slot struct {
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	DateTime  time.Time `json:"dateTime"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02T15:04", value, loc)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return parsed, nil
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse("15:04", timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// GenerateSlots walks the working window of date's weekday in steps of
// duration minutes. A trailing slot that would extend past the window end
// is dropped, not truncated. Closed or unconfigured days yield no slots.
// Every emitted slot starts available; the caller overlays conflicts.
func GenerateSlots(week Week, date time.Time, duration int) ([]Slot, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	hours, ok := week[WeekdayName(date.Weekday())]
	if !ok || !hours.IsAvailable {
		return []Slot{}, nil
	}

	startMin, err := ParseClockToMinutes(hours.Start)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClockToMinutes(hours.End)
	if err != nil {
		return nil, err
	}

	slots := make([]Slot, 0)
	for cursor := startMin; cursor+duration <= endMin; cursor += duration {
		start := time.Date(date.Year(), date.Month(), date.Day(), cursor/60, cursor%60, 0, 0, date.Location())
		slots = append(slots, Slot{
			StartTime: MinutesToClock(cursor),
			EndTime:   MinutesToClock(cursor + duration),
			DateTime:  start,
			Available: true,
		})
	}

	return slots, nil
}

// WithinWindow reports whether [start, start+duration) fits inside the
// day's working window. Only start's clock time is considered.
func WithinWindow(hours DayHours, start time.Time, duration int) (bool, error) {
	windowStart, err := ParseClockToMinutes(hours.Start)
	if err != nil {
		return false, err
	}
	windowEnd, err := ParseClockToMinutes(hours.End)
	if err != nil {
		return false, err
	}
	startMin := start.Hour()*60 + start.Minute()
	return startMin >= windowStart && startMin+duration <= windowEnd, nil
}
