package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound means the host or booking link does not exist or is inactive.
	ErrNotFound = errors.New("not found")
	// ErrSlotUnavailable means the requested slot failed conflict validation.
	// It is an expected outcome of a booking attempt, not a system fault.
	ErrSlotUnavailable = errors.New("slot no longer available")
)

// ValidationError marks a malformed booking request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// GuestInfo is what the guest submits alongside the chosen slot.
type GuestInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Role    string `json:"role,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Booking is a confirmed reservation of one slot.
type Booking struct {
	ID              string
	HostID          string
	Slot            Interval
	Duration        time.Duration
	Guest           GuestInfo
	MeetingType     string
	CalendarEventID string
}

// BookingLink carries the link metadata a booking attempt is made through.
type BookingLink struct {
	HostID   string
	HostName string
	Title    string
	Duration time.Duration
	// MeetingType is the link default; the guest may override per booking.
	MeetingType string
	Timezone    *time.Location
}

// Event is the calendar event created after a booking confirms.
type Event struct {
	Title       string
	Description string
	Slot        Interval
	GuestEmail  string
	WithMeet    bool
}

// EventRef identifies a created calendar event.
type EventRef struct {
	ID       string
	MeetLink string
}

// Confirmation is returned to the guest on a successful booking.
type Confirmation struct {
	HostID          string `json:"-"`
	BookingID       string `json:"booking_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration"`
	Title           string `json:"title"`
	HostName        string `json:"host_name"`
	MeetLink        string `json:"meet_link,omitempty"`
	CalendarEventID string `json:"calendar_event_id,omitempty"`
	Warning         string `json:"warning,omitempty"`
}

// RuleStore reads a host's weekly availability rules.
type RuleStore interface {
	GetRules(ctx context.Context, hostID string) ([]Rule, error)
}

// CalendarProvider is the external calendar: busy intervals and event creation.
type CalendarProvider interface {
	GetBusy(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]Interval, error)
	CreateEvent(ctx context.Context, hostID string, ev Event) (EventRef, error)
}

// BookingStore persists bookings. TryConfirm must be atomic per host and
// slot interval: of two racing confirms for overlapping slots, even with
// different starts, exactly one succeeds and the other gets
// ErrSlotUnavailable.
type BookingStore interface {
	ListConfirmed(ctx context.Context, hostID string, window Interval) ([]Interval, error)
	TryConfirm(ctx context.Context, b *Booking) error
	SetCalendarEvent(ctx context.Context, bookingID, eventID string) error
}

// Notifier sends the guest's confirmation message.
type Notifier interface {
	SendConfirmation(ctx context.Context, guestEmail string, c Confirmation) error
}

// Service is the one source of truth for slot computation and booking
// validation, shared by the host calendar surface and the public booking
// page. All collaborators are injected; the engine itself does no I/O.
type Service struct {
	Rules    RuleStore
	Calendar CalendarProvider
	Bookings BookingStore
	Notify   Notifier
	Logger   *zap.Logger

	// Now is the clock; defaults to time.Now. Sampled once per request.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// Availability computes the bookable grid for a host over the next days at
// the given slot duration. A calendar-provider failure degrades to rule-only
// availability rather than failing the request.
func (s *Service) Availability(ctx context.Context, hostID string, loc *time.Location, days int, duration time.Duration) ([]DaySlots, error) {
	if days <= 0 {
		days = 14
	}
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	now := s.now()

	rules, err := s.Rules.GetRules(ctx, hostID)
	if err != nil {
		return nil, err
	}
	candidates := Expand(rules, now, days, duration, loc)
	if len(candidates) == 0 {
		return nil, nil
	}

	rangeStart := now
	rangeEnd := candidates[len(candidates)-1].End

	busy, err := s.Calendar.GetBusy(ctx, hostID, rangeStart, rangeEnd)
	if err != nil {
		// Degraded mode: availability computed from rules alone.
		s.log().Warn("busy fetch failed, continuing without calendar sync",
			zap.String("host_id", hostID), zap.Error(err))
		busy = nil
	}

	booked, err := s.Bookings.ListConfirmed(ctx, hostID, Interval{Start: rangeStart, End: rangeEnd})
	if err != nil {
		return nil, err
	}

	candidates = FilterPast(candidates, now)
	candidates = FilterBusy(candidates, busy)
	candidates = FilterBusy(candidates, booked)

	return Assemble(candidates, loc), nil
}

// Book runs one booking attempt through the conflict guard:
// validate the request, reconstruct the chosen slot, re-check busy intervals
// and confirmed bookings, then hand off to the store's atomic confirm.
// Calendar-event creation and the confirmation email happen after the booking
// is committed and are best-effort; their failures surface as a warning on
// the confirmation, never as a rollback.
func (s *Service) Book(ctx context.Context, link BookingLink, guest GuestInfo, date, timeOfDay, meetingType string) (*Confirmation, error) {
	if err := validateBookingRequest(guest, date, timeOfDay, meetingType, link.MeetingType); err != nil {
		return nil, err
	}
	if meetingType == "" {
		meetingType = link.MeetingType
	}

	slot, err := SlotAt(date, timeOfDay, link.Duration, link.Timezone)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	now := s.now()
	if !slot.Start.After(now) {
		return nil, ErrSlotUnavailable
	}

	busy, err := s.Calendar.GetBusy(ctx, link.HostID, slot.Start, slot.End)
	if err != nil {
		s.log().Warn("busy fetch failed during booking, proceeding without calendar sync",
			zap.String("host_id", link.HostID), zap.Error(err))
		busy = nil
	}
	if overlapsAny(slot, busy) {
		return nil, ErrSlotUnavailable
	}

	booked, err := s.Bookings.ListConfirmed(ctx, link.HostID, slot)
	if err != nil {
		return nil, err
	}
	if overlapsAny(slot, booked) {
		return nil, ErrSlotUnavailable
	}

	booking := &Booking{
		HostID:      link.HostID,
		Slot:        slot,
		Duration:    link.Duration,
		Guest:       guest,
		MeetingType: meetingType,
	}
	if err := s.Bookings.TryConfirm(ctx, booking); err != nil {
		return nil, err
	}

	conf := &Confirmation{
		HostID:          link.HostID,
		BookingID:       booking.ID,
		Date:            date,
		Time:            timeOfDay,
		DurationMinutes: int(link.Duration / time.Minute),
		Title:           link.Title,
		HostName:        link.HostName,
	}

	ref, err := s.Calendar.CreateEvent(ctx, link.HostID, Event{
		Title:       fmt.Sprintf("%s - %s", link.Title, guest.Name),
		Description: eventDescription(guest),
		Slot:        slot,
		GuestEmail:  guest.Email,
		WithMeet:    strings.EqualFold(meetingType, "google_meet"),
	})
	if err != nil {
		s.log().Warn("calendar event creation failed after confirm",
			zap.String("booking_id", booking.ID), zap.Error(err))
		conf.Warning = "calendar event could not be created, but the booking is confirmed"
	} else {
		conf.MeetLink = ref.MeetLink
		conf.CalendarEventID = ref.ID
		booking.CalendarEventID = ref.ID
		if ref.ID != "" {
			if err := s.Bookings.SetCalendarEvent(ctx, booking.ID, ref.ID); err != nil {
				s.log().Warn("could not record calendar event id",
					zap.String("booking_id", booking.ID), zap.Error(err))
			}
		}
	}

	if s.Notify != nil {
		if err := s.Notify.SendConfirmation(ctx, guest.Email, *conf); err != nil {
			s.log().Warn("confirmation email failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
			if conf.Warning == "" {
				conf.Warning = "confirmation email could not be sent"
			}
		}
	}

	return conf, nil
}

func validateBookingRequest(guest GuestInfo, date, timeOfDay, meetingType, linkDefault string) error {
	switch {
	case date == "":
		return &ValidationError{Reason: "date is required"}
	case timeOfDay == "":
		return &ValidationError{Reason: "time is required"}
	case guest.Name == "":
		return &ValidationError{Reason: "name is required"}
	case guest.Email == "":
		return &ValidationError{Reason: "email is required"}
	}
	effective := meetingType
	if effective == "" {
		effective = linkDefault
	}
	if strings.EqualFold(effective, "phone") && guest.Phone == "" {
		return &ValidationError{Reason: "phone number required for phone meetings"}
	}
	return nil
}

func eventDescription(g GuestInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking with %s\nEmail: %s\n", g.Name, g.Email)
	if g.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", g.Company)
	}
	if g.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", g.Role)
	}
	if g.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", g.Phone)
	}
	if g.Notes != "" {
		fmt.Fprintf(&b, "\nNotes:\n%s\n", g.Notes)
	}
	return b.String()
}
