package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/appointly/insights/libs/db"
	"github.com/appointly/insights/services/insights-service/internal/availability"
	"github.com/appointly/insights/services/insights-service/internal/model"
)

// Repository loads the already-scoped collections the pure engine consumes.
// All reads are per business; the engine itself never touches the database.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) LoadAppointments(ctx context.Context, businessID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, to_char(date, 'YYYY-MM-DD'), time_slot, staff_id, service_id,
			client_name, COALESCE(client_email, ''), COALESCE(client_phone, ''),
			status, COALESCE(notes, '')
		FROM appointments
		WHERE business_id = $1
		ORDER BY date ASC, time_slot ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		var status string
		if err := rows.Scan(&a.ID, &a.Date, &a.TimeSlot, &a.StaffID, &a.ServiceID,
			&a.ClientName, &a.ClientEmail, &a.ClientPhone, &status, &a.Notes); err != nil {
			return nil, err
		}
		a.Status = model.AppointmentStatus(status)
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (r *Repository) LoadServices(ctx context.Context, businessID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price, duration_minutes
		FROM services
		WHERE business_id = $1
		ORDER BY name ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Price, &svc.DurationMinutes); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (r *Repository) LoadStaff(ctx context.Context, businessID string) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(role, ''), COALESCE(specialties, '{}')
		FROM staff
		WHERE business_id = $1
		ORDER BY name ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.Role, &s.Specialties); err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

// LoadSchedule builds the catalog-backed availability lookup from the
// per-weekday working-hours rows.
func (r *Repository) LoadSchedule(ctx context.Context, businessID string) (*availability.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id, weekday, is_working,
			COALESCE(to_char(start_time, 'HH24:MI'), ''),
			COALESCE(to_char(end_time, 'HH24:MI'), '')
		FROM staff_working_hours
		WHERE business_id = $1
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedule := availability.NewSchedule()
	for rows.Next() {
		var staffID string
		var weekday int
		var rule model.DayRule
		if err := rows.Scan(&staffID, &weekday, &rule.IsWorking, &rule.StartTime, &rule.EndTime); err != nil {
			return nil, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		schedule.Set(staffID, time.Weekday(weekday), rule)
	}
	return schedule, rows.Err()
}

// RecordSnapshotAudit notes that a snapshot was computed for a business and
// window pair. Best effort; the caller logs and moves on if it fails.
func (r *Repository) RecordSnapshotAudit(ctx context.Context, businessID string, current, previous model.DateRange, cacheHit bool) error {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO snapshot_audit (id, business_id, range_start, range_end, prev_start, prev_end, cache_hit, computed_at)
		VALUES ($1, $2, $3::date, $4::date, $5::date, $6::date, $7, now())
	`, id, businessID, current.Start, current.End, previous.Start, previous.End, cacheHit)
	return err
}
