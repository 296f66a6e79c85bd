package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrContract marks caller programming errors (invalid ranges, negative prices in
// reference data). Dirty appointment data never produces this; it degrades instead.
var ErrContract = errors.New("contract violation")

const DateLayout = "2006-01-02"

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
	StatusArchived  AppointmentStatus = "ARCHIVED"
)

// Countable reports whether the appointment counts toward revenue and bookings.
func (s AppointmentStatus) Countable() bool {
	return s == StatusConfirmed || s == StatusCompleted
}

// Lost reports whether the appointment represents lost revenue.
func (s AppointmentStatus) Lost() bool {
	return s == StatusCancelled || s == StatusNoShow
}

type Appointment struct {
	ID          string
	Date        string // YYYY-MM-DD, organization-local
	TimeSlot    string // HH:mm, organization-local
	StaffID     string
	ServiceID   string
	ClientName  string
	ClientEmail string
	ClientPhone string
	Status      AppointmentStatus
	Notes       string
}

type Service struct {
	ID              string
	Name            string
	Price           float64
	DurationMinutes int
}

type Staff struct {
	ID          string
	Name        string
	Role        string
	Specialties []string
}

// DayRule is a staff member's working-hours rule for one day of the week.
type DayRule struct {
	IsWorking bool
	StartTime string // HH:mm
	EndTime   string // HH:mm
}

// DateRange is an inclusive calendar-date window.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r DateRange) Validate() error {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return fmt.Errorf("%w: invalid range start %q", ErrContract, r.Start)
	}
	end, err := time.Parse(DateLayout, r.End)
	if err != nil {
		return fmt.Errorf("%w: invalid range end %q", ErrContract, r.End)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: range start %s after end %s", ErrContract, r.Start, r.End)
	}
	return nil
}

// Contains reports whether an ISO date string falls inside the range.
// Lexicographic comparison is valid because dates are zero-padded ISO form.
func (r DateRange) Contains(date string) bool {
	if len(date) != len(DateLayout) {
		return false
	}
	return date >= r.Start && date <= r.End
}

// EachDay calls fn for every calendar day in the range, in order.
// The range must have been validated first.
func (r DateRange) EachDay(fn func(day time.Time)) {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return
	}
	end, err := time.Parse(DateLayout, r.End)
	if err != nil {
		return
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// ParseDate parses an organization-local calendar date.
func ParseDate(date string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseClock converts an HH:mm time-of-day string into minutes from midnight.
func ParseClock(clock string) (int, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// ValidateCatalog rejects reference data that indicates caller programming error.
func ValidateCatalog(services []Service) error {
	for _, svc := range services {
		if svc.Price < 0 {
			return fmt.Errorf("%w: service %s has negative price", ErrContract, svc.ID)
		}
		if svc.DurationMinutes <= 0 {
			return fmt.Errorf("%w: service %s has non-positive duration", ErrContract, svc.ID)
		}
	}
	return nil
}
