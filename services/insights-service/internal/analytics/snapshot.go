package analytics

import "github.com/appointly/insights/services/insights-service/internal/model"

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Metric is a headline number with its growth against the previous window.
type Metric struct {
	Value  float64 `json:"value"`
	Growth float64 `json:"growth"`
	Trend  Trend   `json:"trend"`
}

type RevenueBlock struct {
	Total   Metric  `json:"total"`
	Average float64 `json:"average"`
	Lost    float64 `json:"lost"`
}

type BusiestBlock struct {
	Day  string `json:"day"`
	Hour string `json:"hour"`
}

type HeatmapEntry struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

type ServiceStat struct {
	ServiceID string  `json:"service_id"`
	Name      string  `json:"name"`
	Revenue   float64 `json:"revenue"`
	Count     int     `json:"count"`
	Share     float64 `json:"share"`
}

type StaffStat struct {
	StaffID       string  `json:"staff_id"`
	Name          string  `json:"name"`
	Revenue       float64 `json:"revenue"`
	Hours         float64 `json:"hours"`
	Utilization   float64 `json:"utilization"`
	Bookings      int     `json:"bookings"`
	Clients       int     `json:"clients"`
	AvgTicket     float64 `json:"avg_ticket"`
	RebookingRate float64 `json:"rebooking_rate"`
	NoShowRate    float64 `json:"no_show_rate"`
}

type ClientStat struct {
	Name   string  `json:"name"`
	Email  string  `json:"email,omitempty"`
	Spent  float64 `json:"spent"`
	Visits int     `json:"visits"`
}

type ClientBase struct {
	TotalActive int     `json:"total_active"`
	ReturnRate  float64 `json:"return_rate"`
}

// Snapshot is the full analytics result for one window compared against the
// previous one. It is freshly constructed on every Aggregate call and carries
// no identity beyond that.
type Snapshot struct {
	Range            model.DateRange `json:"range"`
	Revenue          RevenueBlock    `json:"revenue"`
	Bookings         Metric          `json:"bookings"`
	Utilization      Metric          `json:"utilization"`
	Busiest          BusiestBlock    `json:"busiest"`
	Heatmap          []HeatmapEntry  `json:"heatmap"`
	TopServices      []ServiceStat   `json:"top_services"`
	TopStaff         []StaffStat     `json:"top_staff"`
	TopClients       []ClientStat    `json:"top_clients"`
	Clients          ClientBase      `json:"clients"`
	CancellationRate float64         `json:"cancellation_rate"`
	NoShowRate       float64         `json:"no_show_rate"`
}
