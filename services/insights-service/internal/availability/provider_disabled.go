//go:build !protogen

package availability

import "context"

// Provider fetches staff weekly schedules from the schedule service.
type Provider interface {
	FetchWeek(ctx context.Context, businessID string, staffIDs []string) (*Schedule, error)
}

// NewProvider returns nil when built without generated gRPC stubs; callers
// fall back to the catalog-backed schedule loaded from storage.
func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
