package analytics

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/appointly/insights/services/insights-service/internal/availability"
	"github.com/appointly/insights/services/insights-service/internal/model"
)

// 2024-01-01 is a Monday.
var (
	week     = model.DateRange{Start: "2024-01-01", End: "2024-01-07"}
	prevWeek = model.DateRange{Start: "2023-12-25", End: "2023-12-31"}
)

func testServices() []model.Service {
	return []model.Service{
		{ID: "cut", Name: "Haircut", Price: 50, DurationMinutes: 60},
		{ID: "color", Name: "Color", Price: 30, DurationMinutes: 90},
	}
}

func testStaff() []model.Staff {
	return []model.Staff{
		{ID: "s1", Name: "Ana"},
		{ID: "s2", Name: "Ben"},
	}
}

func appt(id, date, slot, staffID, serviceID string, status model.AppointmentStatus) model.Appointment {
	return model.Appointment{
		ID: id, Date: date, TimeSlot: slot, StaffID: staffID, ServiceID: serviceID,
		ClientName: "Client " + id, ClientPhone: "55512340" + id, Status: status,
	}
}

func weekdaySchedule(staffIDs ...string) *availability.Schedule {
	s := availability.NewSchedule()
	for _, id := range staffIDs {
		for wd := time.Monday; wd <= time.Friday; wd++ {
			s.Set(id, wd, model.DayRule{IsWorking: true, StartTime: "09:00", EndTime: "17:00"})
		}
	}
	return s
}

func TestAggregateRevenueAndBookings(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2024-01-02", "11:00", "s1", "cut", model.StatusConfirmed),
		appt("3", "2024-01-03", "12:00", "s2", "color", model.StatusCompleted),
		appt("4", "2024-01-03", "13:00", "s2", "cut", model.StatusCancelled),
		appt("5", "2024-01-04", "14:00", "s1", "color", model.StatusNoShow),
		appt("6", "2023-12-27", "10:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, weekdaySchedule("s1", "s2"))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if snap.Revenue.Total.Value != 130 {
		t.Fatalf("expected revenue 130, got %v", snap.Revenue.Total.Value)
	}
	if want := 130.0 / 3; snap.Revenue.Average != want {
		t.Fatalf("expected average %v, got %v", want, snap.Revenue.Average)
	}
	if snap.Revenue.Lost != 80 {
		t.Fatalf("expected lost revenue 80, got %v", snap.Revenue.Lost)
	}
	if want := (130.0 - 50) / 50 * 100; snap.Revenue.Total.Growth != want || snap.Revenue.Total.Trend != TrendUp {
		t.Fatalf("expected growth %v/up, got %v/%s", want, snap.Revenue.Total.Growth, snap.Revenue.Total.Trend)
	}

	if snap.Bookings.Value != 3 {
		t.Fatalf("expected 3 bookings, got %v", snap.Bookings.Value)
	}
	if snap.Bookings.Growth != 200 || snap.Bookings.Trend != TrendUp {
		t.Fatalf("expected bookings growth 200/up, got %v/%s", snap.Bookings.Growth, snap.Bookings.Trend)
	}

	// 5 appointments fall in the current window, one cancelled, one no-show.
	if snap.CancellationRate != 20 {
		t.Fatalf("expected cancellation rate 20, got %v", snap.CancellationRate)
	}
	if snap.NoShowRate != 20 {
		t.Fatalf("expected no-show rate 20, got %v", snap.NoShowRate)
	}
}

func TestAggregateGrowthZeroPrevious(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.Revenue.Total.Growth != 100 || snap.Revenue.Total.Trend != TrendUp {
		t.Fatalf("expected 100/up for zero previous, got %v/%s", snap.Revenue.Total.Growth, snap.Revenue.Total.Trend)
	}
	if math.IsNaN(snap.Revenue.Total.Growth) || math.IsInf(snap.Revenue.Total.Growth, 0) {
		t.Fatal("growth must never be NaN or Inf")
	}
}

func TestAggregateGrowthBothZero(t *testing.T) {
	snap, err := Aggregate(nil, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.Revenue.Total.Growth != 0 || snap.Revenue.Total.Trend != TrendNeutral {
		t.Fatalf("expected 0/neutral, got %v/%s", snap.Revenue.Total.Growth, snap.Revenue.Total.Trend)
	}
	if snap.Bookings.Growth != 0 || snap.Bookings.Trend != TrendNeutral {
		t.Fatalf("expected 0/neutral bookings, got %v/%s", snap.Bookings.Growth, snap.Bookings.Trend)
	}
	if snap.Revenue.Average != 0 {
		t.Fatalf("expected 0 average with no appointments, got %v", snap.Revenue.Average)
	}
}

func TestAggregateGrowthDown(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2023-12-27", "10:00", "s1", "cut", model.StatusCompleted),
		appt("3", "2023-12-28", "10:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.Revenue.Total.Growth != -50 || snap.Revenue.Total.Trend != TrendDown {
		t.Fatalf("expected -50/down, got %v/%s", snap.Revenue.Total.Growth, snap.Revenue.Total.Trend)
	}
}

func TestAggregateHeatmapAndBusiest(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-02", "14:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2024-01-02", "14:15", "s1", "cut", model.StatusCompleted),
		appt("3", "2024-01-02", "14:30", "s1", "cut", model.StatusCompleted),
		appt("4", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
		appt("5", "2024-01-03", "10:30", "s1", "cut", model.StatusCompleted),
		appt("6", "2024-01-03", "09:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if snap.Busiest.Day != "Tuesday" {
		t.Fatalf("expected busiest day Tuesday, got %q", snap.Busiest.Day)
	}
	if snap.Busiest.Hour != "2 PM" {
		t.Fatalf("expected busiest hour 2 PM, got %q", snap.Busiest.Hour)
	}

	want := []HeatmapEntry{
		{Hour: "2 PM", Count: 3},
		{Hour: "10 AM", Count: 2},
		{Hour: "9 AM", Count: 1},
	}
	if !reflect.DeepEqual(snap.Heatmap, want) {
		t.Fatalf("unexpected heatmap: %+v", snap.Heatmap)
	}

	sum := 0
	for _, e := range snap.Heatmap {
		sum += e.Count
	}
	if sum != int(snap.Bookings.Value) {
		t.Fatalf("heatmap counts sum %d, want %v", sum, snap.Bookings.Value)
	}
}

func TestAggregateBusiestTieBreaks(t *testing.T) {
	// Equal counts on Monday/Tuesday and at 9 AM/2 PM: earliest wins.
	appts := []model.Appointment{
		appt("1", "2024-01-02", "14:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2024-01-01", "09:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.Busiest.Day != "Monday" {
		t.Fatalf("expected Monday on tie, got %q", snap.Busiest.Day)
	}
	if snap.Busiest.Hour != "9 AM" {
		t.Fatalf("expected 9 AM on tie, got %q", snap.Busiest.Hour)
	}
}

func TestAggregateUtilization(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2024-01-02", "11:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), []model.Staff{{ID: "s1", Name: "Ana"}}, week, prevWeek, weekdaySchedule("s1"))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	// Five working days of 480 minutes; 120 booked minutes.
	if want := 120.0 / 2400 * 100; snap.Utilization.Value != want {
		t.Fatalf("expected utilization %v, got %v", want, snap.Utilization.Value)
	}
	if snap.Utilization.Trend != TrendUp {
		t.Fatalf("expected up trend against empty previous window, got %s", snap.Utilization.Trend)
	}
}

func TestAggregateUtilizationNoAvailability(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.Utilization.Value != 0 {
		t.Fatalf("expected 0 utilization without availability, got %v", snap.Utilization.Value)
	}
}

func TestAggregateUtilizationClamped(t *testing.T) {
	schedule := availability.NewSchedule()
	schedule.Set("s1", time.Monday, model.DayRule{IsWorking: true, StartTime: "10:00", EndTime: "10:30"})

	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2024-01-01", "11:00", "s1", "cut", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), []model.Staff{{ID: "s1", Name: "Ana"}}, week, prevWeek, schedule)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.Utilization.Value != 100 {
		t.Fatalf("expected utilization clamped to 100, got %v", snap.Utilization.Value)
	}
}

func TestAggregateTopServices(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2024-01-02", "11:00", "s1", "cut", model.StatusCompleted),
		appt("3", "2024-01-03", "12:00", "s2", "color", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(snap.TopServices) != 2 {
		t.Fatalf("expected 2 services, got %d", len(snap.TopServices))
	}
	if snap.TopServices[0].ServiceID != "cut" || snap.TopServices[0].Revenue != 100 || snap.TopServices[0].Count != 2 {
		t.Fatalf("unexpected top service: %+v", snap.TopServices[0])
	}

	shares := 0.0
	for _, s := range snap.TopServices {
		shares += s.Share
	}
	if math.Abs(shares-100) > 1e-9 {
		t.Fatalf("expected shares to sum to 100, got %v", shares)
	}
}

func TestAggregateTopStaff(t *testing.T) {
	rebooker := model.Appointment{
		ID: "1", Date: "2024-01-01", TimeSlot: "10:00", StaffID: "s1", ServiceID: "cut",
		ClientName: "Dana", ClientPhone: "555-111-2222", Status: model.StatusCompleted,
	}
	rebookerAgain := rebooker
	rebookerAgain.ID = "2"
	rebookerAgain.Date = "2024-01-03"
	rebookerAgain.ClientPhone = "(555) 111-2222"
	oneOff := model.Appointment{
		ID: "3", Date: "2024-01-02", TimeSlot: "11:00", StaffID: "s1", ServiceID: "color",
		ClientName: "Eli", ClientPhone: "555-333-4444", Status: model.StatusConfirmed,
	}
	missed := model.Appointment{
		ID: "4", Date: "2024-01-04", TimeSlot: "12:00", StaffID: "s1", ServiceID: "cut",
		ClientName: "Flo", ClientPhone: "555-555-6666", Status: model.StatusNoShow,
	}

	snap, err := Aggregate(
		[]model.Appointment{rebooker, rebookerAgain, oneOff, missed},
		testServices(), testStaff(), week, prevWeek, weekdaySchedule("s1"),
	)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(snap.TopStaff) != 1 {
		t.Fatalf("expected 1 staff entry, got %d", len(snap.TopStaff))
	}
	st := snap.TopStaff[0]
	if st.StaffID != "s1" || st.Name != "Ana" {
		t.Fatalf("unexpected staff entry: %+v", st)
	}
	if st.Revenue != 130 || st.Bookings != 3 || st.Clients != 2 {
		t.Fatalf("unexpected staff totals: %+v", st)
	}
	if want := 60.0 + 60 + 90; st.Hours != want/60 {
		t.Fatalf("expected %v hours, got %v", want/60, st.Hours)
	}
	if st.RebookingRate != 50 {
		t.Fatalf("expected rebooking rate 50, got %v", st.RebookingRate)
	}
	if want := 1.0 / 4 * 100; st.NoShowRate != want {
		t.Fatalf("expected no-show rate %v, got %v", want, st.NoShowRate)
	}
	if want := 130.0 / 3; st.AvgTicket != want {
		t.Fatalf("expected avg ticket %v, got %v", want, st.AvgTicket)
	}
}

func TestAggregateTopClientsMergeByPhone(t *testing.T) {
	a := model.Appointment{
		ID: "1", Date: "2024-01-01", TimeSlot: "10:00", StaffID: "s1", ServiceID: "cut",
		ClientName: "Gia", ClientPhone: "555-123-4567", Status: model.StatusCompleted,
	}
	b := a
	b.ID = "2"
	b.Date = "2024-01-03"
	b.ClientPhone = "(555) 123-4567"
	c := model.Appointment{
		ID: "3", Date: "2024-01-02", TimeSlot: "11:00", StaffID: "s1", ServiceID: "color",
		ClientName: "Hal", ClientPhone: "555-999-8888", Status: model.StatusCompleted,
	}

	snap, err := Aggregate([]model.Appointment{a, b, c}, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(snap.TopClients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(snap.TopClients))
	}
	if snap.TopClients[0].Name != "Gia" || snap.TopClients[0].Spent != 100 || snap.TopClients[0].Visits != 2 {
		t.Fatalf("unexpected top client: %+v", snap.TopClients[0])
	}

	if snap.Clients.TotalActive != 2 {
		t.Fatalf("expected 2 active clients, got %d", snap.Clients.TotalActive)
	}
	if snap.Clients.ReturnRate != 50 {
		t.Fatalf("expected 50%% return rate, got %v", snap.Clients.ReturnRate)
	}
}

func TestAggregateMissingCatalogEntries(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "ghost-staff", "ghost-service", model.StatusCompleted),
	}

	snap, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("missing references must not error: %v", err)
	}
	if snap.Revenue.Total.Value != 0 {
		t.Fatalf("expected 0 revenue for unresolved service, got %v", snap.Revenue.Total.Value)
	}
	if snap.Bookings.Value != 1 {
		t.Fatalf("appointment should still count as a booking, got %v", snap.Bookings.Value)
	}
}

func TestAggregateMalformedTimeSlot(t *testing.T) {
	good := appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted)
	bad := appt("2", "2024-01-02", "not-a-time", "s1", "cut", model.StatusCompleted)

	snap, err := Aggregate([]model.Appointment{good, bad}, testServices(), testStaff(), week, prevWeek, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.Bookings.Value != 2 {
		t.Fatalf("malformed time slot must still count as a booking, got %v", snap.Bookings.Value)
	}
	if len(snap.Heatmap) != 1 || snap.Heatmap[0].Count != 1 {
		t.Fatalf("malformed time slot must not reach the heatmap: %+v", snap.Heatmap)
	}
}

func TestAggregateContractViolations(t *testing.T) {
	badRange := model.DateRange{Start: "2024-01-07", End: "2024-01-01"}
	if _, err := Aggregate(nil, testServices(), testStaff(), badRange, prevWeek, nil); !errors.Is(err, model.ErrContract) {
		t.Fatalf("expected contract violation for inverted range, got %v", err)
	}

	badCatalog := []model.Service{{ID: "x", Name: "X", Price: -1, DurationMinutes: 30}}
	if _, err := Aggregate(nil, badCatalog, testStaff(), week, prevWeek, nil); !errors.Is(err, model.ErrContract) {
		t.Fatalf("expected contract violation for negative price, got %v", err)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	appts := []model.Appointment{
		appt("1", "2024-01-01", "10:00", "s1", "cut", model.StatusCompleted),
		appt("2", "2024-01-02", "14:00", "s2", "color", model.StatusConfirmed),
	}

	first, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, weekdaySchedule("s1", "s2"))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	second, err := Aggregate(appts, testServices(), testStaff(), week, prevWeek, weekdaySchedule("s1", "s2"))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs must produce identical snapshots")
	}
}

func TestGrowthOf(t *testing.T) {
	cases := []struct {
		name       string
		cur, prev  float64
		wantGrowth float64
		wantTrend  Trend
	}{
		{"both zero", 0, 0, 0, TrendNeutral},
		{"prev zero", 10, 0, 100, TrendUp},
		{"doubled", 20, 10, 100, TrendUp},
		{"halved", 5, 10, -50, TrendDown},
		{"flat", 10, 10, 0, TrendNeutral},
	}
	for _, tc := range cases {
		g, trend := growthOf(tc.cur, tc.prev)
		if g != tc.wantGrowth || trend != tc.wantTrend {
			t.Fatalf("%s: got %v/%s, want %v/%s", tc.name, g, trend, tc.wantGrowth, tc.wantTrend)
		}
	}
}

func TestHourLabels(t *testing.T) {
	cases := map[int]string{0: "12 AM", 1: "1 AM", 11: "11 AM", 12: "12 PM", 14: "2 PM", 23: "11 PM"}
	for h, want := range cases {
		if got := hourLabel(h); got != want {
			t.Fatalf("hourLabel(%d) = %q, want %q", h, got, want)
		}
	}
}
