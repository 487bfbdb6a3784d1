package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeRules struct {
	rules []Rule
	err   error
}

func (f *fakeRules) GetRules(ctx context.Context, hostID string) ([]Rule, error) {
	return f.rules, f.err
}

type fakeCalendar struct {
	busy      []Interval
	busyErr   error
	createErr error

	mu      sync.Mutex
	created []Event
}

func (f *fakeCalendar) GetBusy(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]Interval, error) {
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, hostID string, ev Event) (EventRef, error) {
	if f.createErr != nil {
		return EventRef{}, f.createErr
	}
	f.mu.Lock()
	f.created = append(f.created, ev)
	f.mu.Unlock()
	return EventRef{ID: "evt-1", MeetLink: "https://meet.example/abc"}, nil
}

// fakeBookings confirms at most one booking per host and slot interval, the
// same guarantee the Postgres exclusion constraint provides: any overlap with
// an already confirmed interval loses, regardless of start time.
type fakeBookings struct {
	mu        sync.Mutex
	confirmed map[string][]Interval
	events    map[string]string
	next      int
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		confirmed: make(map[string][]Interval),
		events:    make(map[string]string),
	}
}

func (f *fakeBookings) ListConfirmed(ctx context.Context, hostID string, window Interval) ([]Interval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Interval
	for _, iv := range f.confirmed[hostID] {
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (f *fakeBookings) TryConfirm(ctx context.Context, b *Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, iv := range f.confirmed[b.HostID] {
		if iv.Overlaps(b.Slot) {
			return ErrSlotUnavailable
		}
	}
	f.confirmed[b.HostID] = append(f.confirmed[b.HostID], b.Slot)
	f.next++
	b.ID = fmt.Sprintf("bk-%d", f.next)
	return nil
}

func (f *fakeBookings) SetCalendarEvent(ctx context.Context, bookingID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[bookingID] = eventID
	return nil
}

func (f *fakeBookings) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ivs := range f.confirmed {
		n += len(ivs)
	}
	return n
}

type fakeNotifier struct {
	err  error
	sent []string
}

func (f *fakeNotifier) SendConfirmation(ctx context.Context, guestEmail string, c Confirmation) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, guestEmail)
	return nil
}

// Tuesday 09:00-10:00 UTC; now is Monday noon, so the grid has exactly
// 2026-03-10 with 09:00 and 09:30.
func newTestService(cal *fakeCalendar, bk *fakeBookings, nt *fakeNotifier) *Service {
	svc := &Service{
		Rules:    &fakeRules{rules: []Rule{{DayOfWeek: 2, StartTime: "09:00", EndTime: "10:00"}}},
		Calendar: cal,
		Bookings: bk,
		Now:      func() time.Time { return monday },
	}
	// Assign through the pointer only when non-nil so a nil *fakeNotifier
	// does not become a non-nil Notifier interface value.
	if nt != nil {
		svc.Notify = nt
	}
	return svc
}

func testLink() BookingLink {
	return BookingLink{
		HostID:      "h1",
		HostName:    "Alex",
		Title:       "Intro call",
		Duration:    30 * time.Minute,
		MeetingType: "google_meet",
		Timezone:    time.UTC,
	}
}

func testGuest() GuestInfo {
	return GuestInfo{Name: "Dana", Email: "dana@example.com"}
}

func TestAvailability_Grid(t *testing.T) {
	svc := newTestService(&fakeCalendar{}, newFakeBookings(), nil)
	grid, err := svc.Availability(context.Background(), "h1", time.UTC, 7, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != 1 || grid[0].Date != "2026-03-10" {
		t.Fatalf("unexpected grid: %v", grid)
	}
	if len(grid[0].Times) != 2 || grid[0].Times[0] != "09:00" || grid[0].Times[1] != "09:30" {
		t.Fatalf("unexpected times: %v", grid[0].Times)
	}
}

func TestAvailability_DegradedWhenCalendarFails(t *testing.T) {
	cal := &fakeCalendar{busyErr: errors.New("freebusy: 503")}
	svc := newTestService(cal, newFakeBookings(), nil)
	grid, err := svc.Availability(context.Background(), "h1", time.UTC, 7, 30*time.Minute)
	if err != nil {
		t.Fatalf("degraded mode must not surface the calendar error, got %v", err)
	}
	if len(grid) != 1 || len(grid[0].Times) != 2 {
		t.Fatalf("expected rule-derived slots unfiltered by busy time, got %v", grid)
	}
}

func TestAvailability_BusyFiltered(t *testing.T) {
	busyStart := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{busy: []Interval{{Start: busyStart, End: busyStart.Add(15 * time.Minute)}}}
	svc := newTestService(cal, newFakeBookings(), nil)
	grid, err := svc.Availability(context.Background(), "h1", time.UTC, 7, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != 1 || len(grid[0].Times) != 1 || grid[0].Times[0] != "09:30" {
		t.Fatalf("expected only 09:30 to survive the busy filter, got %v", grid)
	}
}

func TestBook_Confirms(t *testing.T) {
	cal := &fakeCalendar{}
	nt := &fakeNotifier{}
	bk := newFakeBookings()
	svc := newTestService(cal, bk, nt)

	conf, err := svc.Book(context.Background(), testLink(), testGuest(), "2026-03-10", "09:00", "")
	if err != nil {
		t.Fatal(err)
	}
	if conf.BookingID == "" || conf.Warning != "" {
		t.Fatalf("unexpected confirmation: %+v", conf)
	}
	if conf.MeetLink == "" {
		t.Fatal("expected meet link from created event")
	}
	if conf.CalendarEventID != "evt-1" || bk.events[conf.BookingID] != "evt-1" {
		t.Fatalf("calendar event id not recorded: conf=%q stored=%q",
			conf.CalendarEventID, bk.events[conf.BookingID])
	}
	if len(cal.created) != 1 {
		t.Fatalf("expected 1 calendar event, got %d", len(cal.created))
	}
	if len(nt.sent) != 1 || nt.sent[0] != "dana@example.com" {
		t.Fatalf("expected confirmation email to guest, got %v", nt.sent)
	}
}

func TestBook_RoundTripRemovesSlot(t *testing.T) {
	bk := newFakeBookings()
	svc := newTestService(&fakeCalendar{}, bk, nil)

	if _, err := svc.Book(context.Background(), testLink(), testGuest(), "2026-03-10", "09:00", ""); err != nil {
		t.Fatal(err)
	}
	grid, err := svc.Availability(context.Background(), "h1", time.UTC, 7, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != 1 || len(grid[0].Times) != 1 || grid[0].Times[0] != "09:30" {
		t.Fatalf("booked 09:00 should no longer be listed, got %v", grid)
	}
}

func TestBook_AtMostOneWinsRace(t *testing.T) {
	svc := newTestService(&fakeCalendar{}, newFakeBookings(), nil)

	type result struct {
		conf *Confirmation
		err  error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conf, err := svc.Book(context.Background(), testLink(), testGuest(), "2026-03-10", "09:30", "")
			results <- result{conf, err}
		}()
	}
	wg.Wait()
	close(results)

	var confirmed, rejected int
	for r := range results {
		switch {
		case r.err == nil && r.conf != nil:
			confirmed++
		case errors.Is(r.err, ErrSlotUnavailable):
			rejected++
		default:
			t.Fatalf("unexpected outcome: %v", r.err)
		}
	}
	if confirmed != 1 || rejected != 1 {
		t.Fatalf("want exactly one confirm and one reject, got %d/%d", confirmed, rejected)
	}
}

// Two links for the same host with different durations produce slots that
// overlap without sharing a start (60m at 09:00 vs 30m at 09:30). The store's
// arbiter keys on the interval, so racing confirms for those still resolve to
// exactly one winner.
func TestBook_OverlappingSlotsDifferentStartsOneWins(t *testing.T) {
	bk := newFakeBookings()
	svc := newTestService(&fakeCalendar{}, bk, nil)

	longLink := testLink()
	longLink.Duration = 60 * time.Minute
	shortLink := testLink()

	type attempt struct {
		link BookingLink
		tod  string
	}
	attempts := []attempt{
		{longLink, "09:00"},
		{shortLink, "09:30"},
	}

	results := make(chan error, len(attempts))
	var wg sync.WaitGroup
	for _, at := range attempts {
		wg.Add(1)
		go func(at attempt) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), at.link, testGuest(), "2026-03-10", at.tod, "")
			results <- err
		}(at)
	}
	wg.Wait()
	close(results)

	var confirmed, rejected int
	for err := range results {
		switch {
		case err == nil:
			confirmed++
		case errors.Is(err, ErrSlotUnavailable):
			rejected++
		default:
			t.Fatalf("unexpected outcome: %v", err)
		}
	}
	if confirmed != 1 || rejected != 1 {
		t.Fatalf("want exactly one confirm and one reject, got %d/%d", confirmed, rejected)
	}
	if bk.count() != 1 {
		t.Fatalf("want a single confirmed interval, got %v", bk.confirmed)
	}
}

func TestBook_RejectsBusySlot(t *testing.T) {
	busyStart := time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)
	cal := &fakeCalendar{busy: []Interval{{Start: busyStart, End: busyStart.Add(30 * time.Minute)}}}
	svc := newTestService(cal, newFakeBookings(), nil)

	if _, err := svc.Book(context.Background(), testLink(), testGuest(), "2026-03-10", "09:00", ""); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("want ErrSlotUnavailable, got %v", err)
	}
}

func TestBook_RejectsPastSlot(t *testing.T) {
	svc := newTestService(&fakeCalendar{}, newFakeBookings(), nil)
	// now is Monday 2026-03-09 12:00 UTC.
	if _, err := svc.Book(context.Background(), testLink(), testGuest(), "2026-03-09", "09:00", ""); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("want ErrSlotUnavailable for past slot, got %v", err)
	}
}

func TestBook_ValidationErrors(t *testing.T) {
	svc := newTestService(&fakeCalendar{}, newFakeBookings(), nil)
	link := testLink()

	cases := []struct {
		name        string
		guest       GuestInfo
		date, tod   string
		meetingType string
	}{
		{"missing date", testGuest(), "", "09:00", ""},
		{"missing time", testGuest(), "2026-03-10", "", ""},
		{"missing name", GuestInfo{Email: "d@example.com"}, "2026-03-10", "09:00", ""},
		{"missing email", GuestInfo{Name: "Dana"}, "2026-03-10", "09:00", ""},
		{"phone meeting without phone", testGuest(), "2026-03-10", "09:00", "phone"},
		{"malformed date", testGuest(), "tomorrow", "09:00", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), link, tc.guest, tc.date, tc.tod, tc.meetingType)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
		})
	}
}

func TestBook_SideEffectFailureKeepsBooking(t *testing.T) {
	cal := &fakeCalendar{createErr: errors.New("events.insert: 500")}
	bk := newFakeBookings()
	svc := newTestService(cal, bk, nil)

	conf, err := svc.Book(context.Background(), testLink(), testGuest(), "2026-03-10", "09:00", "")
	if err != nil {
		t.Fatalf("booking must stay confirmed when event creation fails, got %v", err)
	}
	if conf.Warning == "" {
		t.Fatal("expected a non-fatal warning on the confirmation")
	}
	if bk.count() != 1 {
		t.Fatalf("booking was not persisted: %v", bk.confirmed)
	}
}

func TestBook_NotifierFailureKeepsBooking(t *testing.T) {
	nt := &fakeNotifier{err: errors.New("smtp: connection refused")}
	svc := newTestService(&fakeCalendar{}, newFakeBookings(), nt)

	conf, err := svc.Book(context.Background(), testLink(), testGuest(), "2026-03-10", "09:00", "")
	if err != nil {
		t.Fatal(err)
	}
	if conf.Warning == "" {
		t.Fatal("expected warning when confirmation email fails")
	}
}
