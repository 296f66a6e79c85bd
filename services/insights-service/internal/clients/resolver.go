package clients

import (
	"sort"
	"strings"
	"time"

	"github.com/appointly/insights/services/insights-service/internal/model"
)

type Status string

const (
	StatusNew      Status = "NEW"
	StatusSteady   Status = "STEADY"
	StatusInactive Status = "INACTIVE"
)

// LastVisitNever is the sentinel for profiles with no parseable visit date.
const LastVisitNever = "never"

// inactiveAfterDays is how long a repeat client can go without a visit before
// the roster marks them inactive.
const inactiveAfterDays = 90

// Visit is one matched appointment annotated with the resolved service.
type Visit struct {
	AppointmentID string                  `json:"appointment_id"`
	Date          string                  `json:"date"`
	TimeSlot      string                  `json:"time_slot"`
	ServiceID     string                  `json:"service_id"`
	ServiceName   string                  `json:"service_name"`
	Price         float64                 `json:"price"`
	Status        model.AppointmentStatus `json:"status"`
}

// Profile is a de-duplicated client with lifecycle status and duplicate flag.
// It is rebuilt in full on every Resolve call.
type Profile struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	LastVisit   string  `json:"last_visit"`
	Visits      int     `json:"visits"`
	TotalSpend  float64 `json:"total_spend"`
	History     []Visit `json:"history"`
	Status      Status  `json:"status"`
	IsDuplicate bool    `json:"is_duplicate"`
}

// Resolve folds the full appointment history into one profile per identity key.
// It never mutates its inputs and returns the same result for the same inputs.
// The only error it returns is a contract violation in the service catalog.
func Resolve(appointments []model.Appointment, services []model.Service, asOf time.Time) ([]Profile, error) {
	if err := model.ValidateCatalog(services); err != nil {
		return nil, err
	}

	svcByID := make(map[string]model.Service, len(services))
	for _, svc := range services {
		svcByID[svc.ID] = svc
	}

	byKey := make(map[string]*Profile)
	var order []string

	for _, a := range appointments {
		if !Eligible(a) {
			continue
		}
		key := IdentityKey(a)
		p := byKey[key]
		if p == nil {
			p = &Profile{
				ID:        key,
				Name:      strings.TrimSpace(a.ClientName),
				LastVisit: LastVisitNever,
			}
			byKey[key] = p
			order = append(order, key)
		}

		var price float64
		var svcName string
		if svc, ok := svcByID[a.ServiceID]; ok {
			price = svc.Price
			svcName = svc.Name
		}

		p.Visits++
		p.TotalSpend += price
		p.History = append(p.History, Visit{
			AppointmentID: a.ID,
			Date:          a.Date,
			TimeSlot:      a.TimeSlot,
			ServiceID:     a.ServiceID,
			ServiceName:   svcName,
			Price:         price,
			Status:        a.Status,
		})

		// Malformed dates must never become lastVisit; they would corrupt every
		// later lexicographic comparison.
		if _, ok := model.ParseDate(a.Date); ok {
			if p.LastVisit == LastVisitNever || a.Date > p.LastVisit {
				p.LastVisit = a.Date
			}
		}

		// Backfill identifiers the profile doesn't have yet, so a client first
		// seen by phone still surfaces a later-supplied email.
		if p.Email == "" {
			p.Email = strings.TrimSpace(a.ClientEmail)
		}
		if p.Phone == "" {
			p.Phone = strings.TrimSpace(a.ClientPhone)
		}
		if p.Name == "" {
			p.Name = strings.TrimSpace(a.ClientName)
		}
	}

	// Duplicate detection runs on the canonical phone, not the identity key.
	// Country-code and prefix variants of one line produce distinct keys, so
	// they surface here as probable duplicates instead of merging silently.
	phoneCounts := make(map[string]int)
	for _, key := range order {
		if phone := CanonicalPhone(byKey[key].Phone); phone != "" {
			phoneCounts[phone]++
		}
	}

	profiles := make([]Profile, 0, len(order))
	for _, key := range order {
		p := byKey[key]
		p.Status = classify(p, asOf)
		phone := CanonicalPhone(p.Phone)
		p.IsDuplicate = phone != "" && phoneCounts[phone] > 1

		sort.SliceStable(p.History, func(i, j int) bool {
			if p.History[i].Date != p.History[j].Date {
				return p.History[i].Date < p.History[j].Date
			}
			return p.History[i].TimeSlot < p.History[j].TimeSlot
		})
		profiles = append(profiles, *p)
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i], profiles[j]
		if a.LastVisit == LastVisitNever || b.LastVisit == LastVisitNever {
			return b.LastVisit == LastVisitNever && a.LastVisit != LastVisitNever
		}
		if a.LastVisit != b.LastVisit {
			return a.LastVisit > b.LastVisit
		}
		return a.Name < b.Name
	})

	return profiles, nil
}

// classify derives the lifecycle status from the folded profile alone.
func classify(p *Profile, asOf time.Time) Status {
	if p.Visits == 1 {
		return StatusNew
	}
	if p.LastVisit == LastVisitNever {
		return StatusSteady
	}
	last, ok := model.ParseDate(p.LastVisit)
	if !ok {
		return StatusSteady
	}
	days := int(asOf.Sub(last).Hours() / 24)
	if days > inactiveAfterDays {
		return StatusInactive
	}
	return StatusSteady
}

// Filter returns the profiles matching a case-insensitive name/email substring
// and an optional status. It copies matches and never mutates the input.
func Filter(profiles []Profile, query string, status Status) []Profile {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Profile
	for _, p := range profiles {
		if status != "" && p.Status != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Email), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Duplicates returns the subset of profiles flagged as probable duplicate identities.
func Duplicates(profiles []Profile) []Profile {
	var out []Profile
	for _, p := range profiles {
		if p.IsDuplicate {
			out = append(out, p)
		}
	}
	return out
}
