package availability

import (
	"time"

	"github.com/appointly/insights/services/insights-service/internal/model"
)

// Schedule holds per-staff weekly working-hours rules. It implements the
// aggregator's Availability lookup and is safe for concurrent reads once built.
type Schedule struct {
	rules map[string]*week
}

type week struct {
	days [7]model.DayRule
	set  [7]bool
}

func NewSchedule() *Schedule {
	return &Schedule{rules: make(map[string]*week)}
}

// Set records the rule for one staff member on one day of the week,
// replacing any earlier rule for that day.
func (s *Schedule) Set(staffID string, weekday time.Weekday, rule model.DayRule) {
	w := s.rules[staffID]
	if w == nil {
		w = &week{}
		s.rules[staffID] = w
	}
	w.days[weekday] = rule
	w.set[weekday] = true
}

// DayRule returns the rule for a staff member on a weekday. A false return
// means no rule is known, which the aggregator treats as unavailable.
func (s *Schedule) DayRule(staffID string, weekday time.Weekday) (model.DayRule, bool) {
	w := s.rules[staffID]
	if w == nil || !w.set[weekday] {
		return model.DayRule{}, false
	}
	return w.days[weekday], true
}
