package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/appointly/insights/services/insights-service/internal/clients"
)

type ClientsHandler struct {
	source DataSource
	logger *slog.Logger
	now    func() time.Time
}

func NewClientsHandler(source DataSource, logger *slog.Logger, now func() time.Time) *ClientsHandler {
	if now == nil {
		now = time.Now
	}
	return &ClientsHandler{source: source, logger: logger, now: now}
}

// List resolves the full client roster and applies the presentation-level
// search and status filters without mutating any profile.
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, ok := h.resolve(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	status := clients.Status(strings.ToUpper(strings.TrimSpace(q.Get("status"))))
	switch status {
	case "", clients.StatusNew, clients.StatusSteady, clients.StatusInactive:
	default:
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	filtered := clients.Filter(profiles, q.Get("q"), status)
	writeJSON(w, map[string]any{
		"total":   len(profiles),
		"clients": emptyable(filtered),
	})
}

// Duplicates returns the profiles flagged as probable duplicate identities.
func (h *ClientsHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	profiles, ok := h.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"clients": emptyable(clients.Duplicates(profiles)),
	})
}

func (h *ClientsHandler) resolve(w http.ResponseWriter, r *http.Request) ([]clients.Profile, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	businessID := businessIDFromHeader(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return nil, false
	}

	ctx := r.Context()
	appointments, err := h.source.LoadAppointments(ctx, businessID)
	if err != nil {
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return nil, false
	}
	services, err := h.source.LoadServices(ctx, businessID)
	if err != nil {
		http.Error(w, "failed to load services", http.StatusInternalServerError)
		return nil, false
	}

	profiles, err := clients.Resolve(appointments, services, h.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return profiles, true
}

func emptyable(profiles []clients.Profile) []clients.Profile {
	if profiles == nil {
		return []clients.Profile{}
	}
	return profiles
}
