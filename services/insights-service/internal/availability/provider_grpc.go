//go:build protogen

package availability

import (
	"context"
	"time"

	"github.com/appointly/insights/libs/grpcx"
	schedulev1 "github.com/appointly/insights/protos/gen/schedule/v1"
	"github.com/appointly/insights/services/insights-service/internal/model"
)

// Provider fetches staff weekly schedules from the schedule service.
type Provider interface {
	FetchWeek(ctx context.Context, businessID string, staffIDs []string) (*Schedule, error)
}

type grpcProvider struct {
	client schedulev1.ScheduleServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: schedulev1.NewScheduleServiceClient(conn)}, nil
}

func (p *grpcProvider) FetchWeek(ctx context.Context, businessID string, staffIDs []string) (*Schedule, error) {
	resp, err := p.client.GetWeeklySchedule(ctx, &schedulev1.WeeklyScheduleRequest{
		BusinessId: businessID,
		StaffIds:   staffIDs,
	})
	if err != nil {
		return nil, err
	}
	schedule := NewSchedule()
	for _, entry := range resp.GetEntries() {
		weekday := time.Weekday(entry.GetWeekday())
		if weekday < time.Sunday || weekday > time.Saturday {
			continue
		}
		schedule.Set(entry.GetStaffId(), weekday, model.DayRule{
			IsWorking: entry.GetIsWorking(),
			StartTime: entry.GetStartTime(),
			EndTime:   entry.GetEndTime(),
		})
	}
	return schedule, nil
}
