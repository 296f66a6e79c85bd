package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/appointly/insights/services/insights-service/internal/analytics"
	"github.com/appointly/insights/services/insights-service/internal/availability"
	"github.com/appointly/insights/services/insights-service/internal/model"
)

// DataSource loads the per-business collections the engine consumes.
type DataSource interface {
	LoadAppointments(ctx context.Context, businessID string) ([]model.Appointment, error)
	LoadServices(ctx context.Context, businessID string) ([]model.Service, error)
	LoadStaff(ctx context.Context, businessID string) ([]model.Staff, error)
	LoadSchedule(ctx context.Context, businessID string) (*availability.Schedule, error)
	RecordSnapshotAudit(ctx context.Context, businessID string, current, previous model.DateRange, cacheHit bool) error
}

// SnapshotCache is the optional memoization layer in front of Aggregate.
type SnapshotCache interface {
	Get(ctx context.Context, businessID string, current, previous model.DateRange) (analytics.Snapshot, bool, error)
	Put(ctx context.Context, businessID string, current, previous model.DateRange, snap analytics.Snapshot) error
}

type AnalyticsHandler struct {
	source   DataSource
	cache    SnapshotCache
	provider availability.Provider
	logger   *slog.Logger
}

func NewAnalyticsHandler(source DataSource, cache SnapshotCache, provider availability.Provider, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{source: source, cache: cache, provider: provider, logger: logger}
}

func (h *AnalyticsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	current := model.DateRange{Start: strings.TrimSpace(q.Get("start")), End: strings.TrimSpace(q.Get("end"))}
	if current.Start == "" || current.End == "" {
		http.Error(w, "start and end are required", http.StatusBadRequest)
		return
	}
	if err := current.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	previous := model.DateRange{Start: strings.TrimSpace(q.Get("prev_start")), End: strings.TrimSpace(q.Get("prev_end"))}
	if previous.Start == "" || previous.End == "" {
		previous = precedingWindow(current)
	}
	if err := previous.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if h.cache != nil {
		snap, hit, err := h.cache.Get(ctx, businessID, current, previous)
		if err != nil {
			h.logger.Warn("snapshot cache read failed", "err", err)
		} else if hit {
			h.audit(ctx, businessID, current, previous, true)
			writeJSON(w, snap)
			return
		}
	}

	appointments, err := h.source.LoadAppointments(ctx, businessID)
	if err != nil {
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}
	services, err := h.source.LoadServices(ctx, businessID)
	if err != nil {
		http.Error(w, "failed to load services", http.StatusInternalServerError)
		return
	}
	staff, err := h.source.LoadStaff(ctx, businessID)
	if err != nil {
		http.Error(w, "failed to load staff", http.StatusInternalServerError)
		return
	}

	schedule, err := h.loadSchedule(ctx, businessID, staff)
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	snap, err := analytics.Aggregate(appointments, services, staff, current, previous, schedule)
	if err != nil {
		if errors.Is(err, model.ErrContract) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to compute snapshot", http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		if err := h.cache.Put(ctx, businessID, current, previous, snap); err != nil {
			h.logger.Warn("snapshot cache write failed", "err", err)
		}
	}
	h.audit(ctx, businessID, current, previous, false)

	writeJSON(w, snap)
}

func (h *AnalyticsHandler) loadSchedule(ctx context.Context, businessID string, staff []model.Staff) (*availability.Schedule, error) {
	if h.provider != nil {
		ids := make([]string, len(staff))
		for i, s := range staff {
			ids[i] = s.ID
		}
		schedule, err := h.provider.FetchWeek(ctx, businessID, ids)
		if err == nil {
			return schedule, nil
		}
		h.logger.Warn("schedule provider failed, falling back to catalog", "err", err)
	}
	return h.source.LoadSchedule(ctx, businessID)
}

func (h *AnalyticsHandler) audit(ctx context.Context, businessID string, current, previous model.DateRange, cacheHit bool) {
	if err := h.source.RecordSnapshotAudit(ctx, businessID, current, previous, cacheHit); err != nil {
		h.logger.Warn("snapshot audit write failed", "err", err)
	}
}

// precedingWindow derives the adjacent window of equal length ending the day
// before the current one starts, for callers that omit an explicit baseline.
func precedingWindow(current model.DateRange) model.DateRange {
	start, okStart := model.ParseDate(current.Start)
	end, okEnd := model.ParseDate(current.End)
	if !okStart || !okEnd {
		return current
	}
	days := int(end.Sub(start).Hours() / 24)
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -days)
	return model.DateRange{
		Start: prevStart.Format(model.DateLayout),
		End:   prevEnd.Format(model.DateLayout),
	}
}

func businessIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Business-Id"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
