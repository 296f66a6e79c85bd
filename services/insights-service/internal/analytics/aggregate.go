package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/appointly/insights/services/insights-service/internal/clients"
	"github.com/appointly/insights/services/insights-service/internal/model"
)

// Availability supplies working-hours rules per staff member and day of week.
// A false second return means the staff member is unavailable that day.
type Availability interface {
	DayRule(staffID string, weekday time.Weekday) (model.DayRule, bool)
}

// Aggregate computes the analytics snapshot for the current window and derives
// growth signals against the previous window. It reads its inputs only and
// allocates a fresh snapshot, so concurrent calls are safe. The only error it
// returns is a contract violation (invalid range, bad reference data); dirty
// appointment rows degrade per field instead.
func Aggregate(appointments []model.Appointment, services []model.Service, staff []model.Staff,
	current, previous model.DateRange, availability Availability) (Snapshot, error) {

	if err := current.Validate(); err != nil {
		return Snapshot{}, err
	}
	if err := previous.Validate(); err != nil {
		return Snapshot{}, err
	}
	if err := model.ValidateCatalog(services); err != nil {
		return Snapshot{}, err
	}

	svcByID := make(map[string]model.Service, len(services))
	for _, svc := range services {
		svcByID[svc.ID] = svc
	}
	staffByID := make(map[string]model.Staff, len(staff))
	for _, s := range staff {
		staffByID[s.ID] = s
	}

	cur := newTally()
	prev := newTally()
	for _, a := range appointments {
		// Windows normally don't overlap, but if a caller passes overlapping
		// ranges each window still sees its own complete picture.
		if current.Contains(a.Date) {
			cur.add(a, svcByID)
		}
		if previous.Contains(a.Date) {
			prev.add(a, svcByID)
		}
	}

	curAvailTotal, curAvailPerStaff := availableMinutes(staff, current, availability)
	prevAvailTotal, _ := availableMinutes(staff, previous, availability)

	snap := Snapshot{Range: current}

	revGrowth, revTrend := growthOf(cur.revenue, prev.revenue)
	snap.Revenue = RevenueBlock{
		Total:   Metric{Value: cur.revenue, Growth: revGrowth, Trend: revTrend},
		Average: safeDiv(cur.revenue, float64(cur.countable)),
		Lost:    cur.lost,
	}

	bookGrowth, bookTrend := growthOf(float64(cur.countable), float64(prev.countable))
	snap.Bookings = Metric{Value: float64(cur.countable), Growth: bookGrowth, Trend: bookTrend}

	curUtil := utilization(cur.bookedMinutes(), curAvailTotal)
	prevUtil := utilization(prev.bookedMinutes(), prevAvailTotal)
	utilGrowth, utilTrend := growthOf(curUtil, prevUtil)
	snap.Utilization = Metric{Value: curUtil, Growth: utilGrowth, Trend: utilTrend}

	snap.Busiest = BusiestBlock{Day: cur.busiestDay(), Hour: cur.busiestHour()}
	snap.Heatmap = cur.heatmap()
	snap.TopServices = cur.topServices(svcByID)
	snap.TopStaff = cur.topStaff(staffByID, curAvailPerStaff)
	snap.TopClients = cur.topClients()
	snap.Clients = cur.clientBase()
	snap.CancellationRate = pct(cur.cancelled, cur.total)
	snap.NoShowRate = pct(cur.noShows, cur.total)

	return snap, nil
}

// growthOf implements the shared divide-by-zero policy: a previous value of
// zero yields neutral growth when current is also zero and a flat +100%/up
// otherwise, so callers never see NaN or Inf.
func growthOf(current, previous float64) (float64, Trend) {
	if previous == 0 {
		if current == 0 {
			return 0, TrendNeutral
		}
		return 100, TrendUp
	}
	g := (current - previous) / previous * 100
	switch {
	case g > 0:
		return g, TrendUp
	case g < 0:
		return g, TrendDown
	}
	return 0, TrendNeutral
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func pct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

func utilization(bookedMin, availableMin int) float64 {
	if availableMin <= 0 {
		return 0
	}
	u := float64(bookedMin) / float64(availableMin) * 100
	if u < 0 {
		return 0
	}
	if u > 100 {
		return 100
	}
	return u
}

// availableMinutes sums each staff member's working-hours rule across every
// calendar day in the range.
func availableMinutes(staff []model.Staff, r model.DateRange, availability Availability) (int, map[string]int) {
	perStaff := make(map[string]int, len(staff))
	if availability == nil {
		return 0, perStaff
	}
	total := 0
	r.EachDay(func(day time.Time) {
		for _, s := range staff {
			rule, ok := availability.DayRule(s.ID, day.Weekday())
			if !ok || !rule.IsWorking {
				continue
			}
			start, okStart := model.ParseClock(rule.StartTime)
			end, okEnd := model.ParseClock(rule.EndTime)
			if !okStart || !okEnd || end <= start {
				continue
			}
			minutes := end - start
			perStaff[s.ID] += minutes
			total += minutes
		}
	})
	return total, perStaff
}

type serviceTally struct {
	revenue float64
	count   int
}

type staffTally struct {
	revenue      float64
	minutes      int
	bookings     int
	noShows      int
	clientVisits map[string]int
}

type clientTally struct {
	name   string
	email  string
	spent  float64
	visits int
}

// tally accumulates one window's worth of buckets in a single pass.
type tally struct {
	revenue   float64
	lost      float64
	countable int
	cancelled int
	noShows   int
	total     int

	dayCounts  [7]int // Monday-first
	hourCounts map[int]int
	services   map[string]*serviceTally
	staff      map[string]*staffTally
	clients    map[string]*clientTally
}

func newTally() *tally {
	return &tally{
		hourCounts: make(map[int]int),
		services:   make(map[string]*serviceTally),
		staff:      make(map[string]*staffTally),
		clients:    make(map[string]*clientTally),
	}
}

func (t *tally) add(a model.Appointment, svcByID map[string]model.Service) {
	t.total++

	var price float64
	var duration int
	if svc, ok := svcByID[a.ServiceID]; ok {
		price = svc.Price
		duration = svc.DurationMinutes
	}

	switch {
	case a.Status.Countable():
		t.revenue += price
		t.countable++

		st := t.staffFor(a.StaffID)
		st.revenue += price
		st.minutes += duration
		st.bookings++

		sv := t.services[a.ServiceID]
		if sv == nil {
			sv = &serviceTally{}
			t.services[a.ServiceID] = sv
		}
		sv.revenue += price
		sv.count++

		// Malformed dates and time slots drop out of the time buckets only;
		// the appointment still counts toward revenue and bookings.
		if d, ok := model.ParseDate(a.Date); ok {
			t.dayCounts[mondayIndex(d.Weekday())]++
		}
		if h, ok := hourOf(a.TimeSlot); ok {
			t.hourCounts[h]++
		}

		if clients.Eligible(a) {
			key := clients.IdentityKey(a)
			st.clientVisits[key]++
			ct := t.clients[key]
			if ct == nil {
				ct = &clientTally{name: strings.TrimSpace(a.ClientName), email: strings.TrimSpace(a.ClientEmail)}
				t.clients[key] = ct
			}
			ct.spent += price
			ct.visits++
			if ct.email == "" {
				ct.email = strings.TrimSpace(a.ClientEmail)
			}
		}

	case a.Status == model.StatusCancelled:
		t.cancelled++
		t.lost += price

	case a.Status == model.StatusNoShow:
		t.noShows++
		t.lost += price
		t.staffFor(a.StaffID).noShows++
	}
}

func (t *tally) staffFor(staffID string) *staffTally {
	st := t.staff[staffID]
	if st == nil {
		st = &staffTally{clientVisits: make(map[string]int)}
		t.staff[staffID] = st
	}
	return st
}

func (t *tally) bookedMinutes() int {
	total := 0
	for _, st := range t.staff {
		total += st.minutes
	}
	return total
}

func (t *tally) busiestDay() string {
	best, bestCount := -1, 0
	for i, c := range t.dayCounts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	if best < 0 {
		return ""
	}
	return dayNames[best]
}

func (t *tally) busiestHour() string {
	best, bestCount := -1, 0
	for h := 0; h < 24; h++ {
		if c := t.hourCounts[h]; c > bestCount {
			best, bestCount = h, c
		}
	}
	if best < 0 {
		return ""
	}
	return hourLabel(best)
}

func (t *tally) heatmap() []HeatmapEntry {
	type bucket struct {
		hour  int
		count int
	}
	buckets := make([]bucket, 0, len(t.hourCounts))
	for h, c := range t.hourCounts {
		if c > 0 {
			buckets = append(buckets, bucket{hour: h, count: c})
		}
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return buckets[i].hour < buckets[j].hour
	})
	out := make([]HeatmapEntry, len(buckets))
	for i, b := range buckets {
		out[i] = HeatmapEntry{Hour: hourLabel(b.hour), Count: b.count}
	}
	return out
}

func (t *tally) topServices(svcByID map[string]model.Service) []ServiceStat {
	out := make([]ServiceStat, 0, len(t.services))
	for id, sv := range t.services {
		name := id
		if svc, ok := svcByID[id]; ok {
			name = svc.Name
		}
		out = append(out, ServiceStat{
			ServiceID: id,
			Name:      name,
			Revenue:   sv.revenue,
			Count:     sv.count,
			Share:     safeDiv(sv.revenue, t.revenue) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (t *tally) topStaff(staffByID map[string]model.Staff, availPerStaff map[string]int) []StaffStat {
	out := make([]StaffStat, 0, len(t.staff))
	for id, st := range t.staff {
		if st.bookings == 0 {
			continue
		}
		name := id
		if s, ok := staffByID[id]; ok {
			name = s.Name
		}
		rebooked := 0
		for _, visits := range st.clientVisits {
			if visits > 1 {
				rebooked++
			}
		}
		out = append(out, StaffStat{
			StaffID:       id,
			Name:          name,
			Revenue:       st.revenue,
			Hours:         float64(st.minutes) / 60,
			Utilization:   utilization(st.minutes, availPerStaff[id]),
			Bookings:      st.bookings,
			Clients:       len(st.clientVisits),
			AvgTicket:     safeDiv(st.revenue, float64(st.bookings)),
			RebookingRate: pct(rebooked, len(st.clientVisits)),
			NoShowRate:    pct(st.noShows, st.bookings+st.noShows),
		})
	}
	// Deterministic base order before the stable revenue sort, so equal-revenue
	// entries always come out the same way.
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out
}

func (t *tally) topClients() []ClientStat {
	out := make([]ClientStat, 0, len(t.clients))
	for _, ct := range t.clients {
		out = append(out, ClientStat{
			Name:   ct.name,
			Email:  ct.email,
			Spent:  ct.spent,
			Visits: ct.visits,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Spent != out[j].Spent {
			return out[i].Spent > out[j].Spent
		}
		if out[i].Visits != out[j].Visits {
			return out[i].Visits > out[j].Visits
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (t *tally) clientBase() ClientBase {
	returning := 0
	for _, ct := range t.clients {
		if ct.visits >= 2 {
			returning++
		}
	}
	return ClientBase{
		TotalActive: len(t.clients),
		ReturnRate:  pct(returning, len(t.clients)),
	}
}

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// mondayIndex maps time.Weekday (Sunday-first) onto the Monday-first display order.
func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

func hourOf(timeSlot string) (int, bool) {
	minutes, ok := model.ParseClock(timeSlot)
	if !ok {
		return 0, false
	}
	return minutes / 60, true
}

func hourLabel(h int) string {
	switch {
	case h == 0:
		return "12 AM"
	case h < 12:
		return strconv.Itoa(h) + " AM"
	case h == 12:
		return "12 PM"
	default:
		return strconv.Itoa(h-12) + " PM"
	}
}
