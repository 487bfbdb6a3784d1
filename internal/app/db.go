package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobtrack-service/internal/schedule"
)

// Store is the Postgres persistence layer. It implements the engine's
// RuleStore and BookingStore.
type Store struct {
	DB *pgxpool.Pool
}

func (s *Store) GetHost(ctx context.Context, id string) (*Host, error) {
	q := `SELECT id, slug, name, email, timezone, active,
	             COALESCE(google_access_token,''), COALESCE(google_refresh_token,''), created_at
	      FROM hosts WHERE id=$1 AND active`
	var h Host
	err := s.DB.QueryRow(ctx, q, id).Scan(&h.ID, &h.Slug, &h.Name, &h.Email, &h.Timezone,
		&h.Active, &h.GoogleAccessToken, &h.GoogleRefreshToken, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// GetBookingLink resolves an active public link and its host.
func (s *Store) GetBookingLink(ctx context.Context, slug string) (*BookingLink, *Host, error) {
	q := `SELECT l.id, l.host_id, l.slug, l.title, COALESCE(l.description,''),
	             l.duration_minutes, l.meeting_type, l.active,
	             h.id, h.slug, h.name, h.email, h.timezone, h.active,
	             COALESCE(h.google_access_token,''), COALESCE(h.google_refresh_token,''), h.created_at
	      FROM booking_links l
	      JOIN hosts h ON h.id = l.host_id
	      WHERE l.slug=$1 AND l.active AND h.active`
	var l BookingLink
	var h Host
	err := s.DB.QueryRow(ctx, q, slug).Scan(
		&l.ID, &l.HostID, &l.Slug, &l.Title, &l.Description, &l.DurationMins, &l.MeetingType, &l.Active,
		&h.ID, &h.Slug, &h.Name, &h.Email, &h.Timezone, &h.Active,
		&h.GoogleAccessToken, &h.GoogleRefreshToken, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &l, &h, nil
}

func (s *Store) SaveGoogleTokens(ctx context.Context, hostID, access, refresh string) error {
	q := `UPDATE hosts SET google_access_token=$1, google_refresh_token=$2 WHERE id=$3`
	tag, err := s.DB.Exec(ctx, q, access, refresh, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// GetRules returns the active weekly rules in engine form.
func (s *Store) GetRules(ctx context.Context, hostID string) ([]schedule.Rule, error) {
	q := `SELECT day_of_week, start_time, end_time, COALESCE(timezone,'')
	      FROM availability_rules WHERE host_id=$1 AND active
	      ORDER BY day_of_week, start_time`
	rows, err := s.DB.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Rule
	for rows.Next() {
		var r schedule.Rule
		if err := rows.Scan(&r.DayOfWeek, &r.StartTime, &r.EndTime, &r.Timezone); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListAvailabilityRules(ctx context.Context, hostID string) ([]AvailabilityRule, error) {
	q := `SELECT id, host_id, day_of_week, start_time, end_time, COALESCE(timezone,''), active, created_at, updated_at
	      FROM availability_rules WHERE host_id=$1 ORDER BY day_of_week, start_time`
	rows, err := s.DB.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailabilityRule
	for rows.Next() {
		var r AvailabilityRule
		if err := rows.Scan(&r.ID, &r.HostID, &r.DayOfWeek, &r.StartTime, &r.EndTime,
			&r.Timezone, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceAvailabilityRules swaps a host's full rule set in one transaction,
// matching how the settings surface saves the weekly grid.
func (s *Store) ReplaceAvailabilityRules(ctx context.Context, hostID string, rules []AvailabilityRule) ([]AvailabilityRule, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE host_id=$1`, hostID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	q := `INSERT INTO availability_rules
	      (host_id, day_of_week, start_time, end_time, timezone, active, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$7) RETURNING id`
	for i := range rules {
		rules[i].HostID = hostID
		rules[i].Active = true
		rules[i].CreatedAt = now
		rules[i].UpdatedAt = now
		err := tx.QueryRow(ctx, q, hostID, rules[i].DayOfWeek, rules[i].StartTime,
			rules[i].EndTime, rules[i].Timezone, true, now).Scan(&rules[i].ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) UpdateAvailabilityRule(ctx context.Context, hostID, ruleID string, r *AvailabilityRule) error {
	now := time.Now().UTC()
	q := `UPDATE availability_rules
	      SET day_of_week=$1, start_time=$2, end_time=$3, timezone=$4, active=$5, updated_at=$6
	      WHERE id=$7 AND host_id=$8
	      RETURNING id`
	err := s.DB.QueryRow(ctx, q, r.DayOfWeek, r.StartTime, r.EndTime, r.Timezone,
		r.Active, now, ruleID, hostID).Scan(&r.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return err
	}
	r.HostID = hostID
	r.UpdatedAt = now
	return nil
}

func (s *Store) DeleteAvailabilityRule(ctx context.Context, hostID, ruleID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM availability_rules WHERE id=$1 AND host_id=$2`, ruleID, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// ListConfirmed returns confirmed booking intervals overlapping the window.
func (s *Store) ListConfirmed(ctx context.Context, hostID string, window schedule.Interval) ([]schedule.Interval, error) {
	q := `SELECT slot_start, slot_end FROM bookings
	      WHERE host_id=$1 AND status='confirmed' AND slot_start < $3 AND slot_end > $2`
	rows, err := s.DB.Query(ctx, q, hostID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// TryConfirm inserts the booking as confirmed. The exclusion constraint on
// (host_id, slot interval) WHERE status='confirmed' makes the insert the
// atomic arbiter: of two racing attempts for overlapping intervals, one lands
// and the other hits an exclusion violation. The constraint keys on the
// interval, not the start, so slots of different durations cannot double-book.
func (s *Store) TryConfirm(ctx context.Context, b *schedule.Booking) error {
	id := uuid.NewString()
	q := `INSERT INTO bookings
	      (id, host_id, slot_start, slot_end, duration_minutes,
	       guest_name, guest_email, guest_company, guest_role, guest_phone, notes,
	       meeting_type, status, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'confirmed',now())`
	_, err := s.DB.Exec(ctx, q,
		id, b.HostID, b.Slot.Start.UTC(), b.Slot.End.UTC(), int(b.Duration/time.Minute),
		b.Guest.Name, b.Guest.Email, b.Guest.Company, b.Guest.Role, b.Guest.Phone, b.Guest.Notes,
		b.MeetingType)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" { // exclusion_violation
			return schedule.ErrSlotUnavailable
		}
		return err
	}
	b.ID = id
	return nil
}

// SetCalendarEvent records the calendar event id after the post-confirm
// insert succeeds. Best-effort from the caller's side; the booking stands
// either way.
func (s *Store) SetCalendarEvent(ctx context.Context, bookingID, eventID string) error {
	_, err := s.DB.Exec(ctx, `UPDATE bookings SET calendar_event_id=$1 WHERE id=$2`, eventID, bookingID)
	return err
}

func (s *Store) ListBookings(ctx context.Context, hostID string, from, to time.Time, filtered bool) ([]Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	base := `SELECT id, host_id, slot_start, slot_end, duration_minutes,
	                guest_name, guest_email, COALESCE(guest_company,''), COALESCE(guest_role,''),
	                COALESCE(guest_phone,''), COALESCE(notes,''), COALESCE(meeting_type,''),
	                status, COALESCE(calendar_event_id,''), created_at
	         FROM bookings WHERE host_id=$1`
	if filtered {
		rows, err = s.DB.Query(ctx, base+` AND slot_start >= $2 AND slot_start < $3 ORDER BY slot_start`, hostID, from, to)
	} else {
		rows, err = s.DB.Query(ctx, base+` ORDER BY slot_start`, hostID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.HostID, &b.SlotStart, &b.SlotEnd, &b.DurationMins,
			&b.GuestName, &b.GuestEmail, &b.GuestCompany, &b.GuestRole,
			&b.GuestPhone, &b.Notes, &b.MeetingType, &b.Status, &b.CalendarEventID, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CancelBooking flips status to cancelled and returns the host id so the
// caller can drop the host's cached grids; the row is never rewritten
// otherwise.
func (s *Store) CancelBooking(ctx context.Context, id string) (string, error) {
	var hostID, status string
	err := s.DB.QueryRow(ctx, `SELECT host_id, status FROM bookings WHERE id=$1`, id).Scan(&hostID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", schedule.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if status == "cancelled" {
		return "", fmt.Errorf("booking already cancelled")
	}
	tag, err := s.DB.Exec(ctx, `UPDATE bookings SET status='cancelled' WHERE id=$1 AND status != 'cancelled'`, id)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", schedule.ErrNotFound
	}
	return hostID, nil
}
