package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jobtrack-service/internal/schedule"
)

// CalendarEvent is the event shape returned by the host calendar surface.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status"`
	Creator     string    `json:"creator,omitempty"`
	MeetLink    string    `json:"meet_link,omitempty"`
}

// GoogleCalendar talks to the host's Google Calendar. It implements
// schedule.CalendarProvider; a host without stored tokens behaves as an
// empty calendar (GetBusy returns nothing, CreateEvent is a no-op), which
// is the documented degraded mode.
type GoogleCalendar struct {
	Cfg   *Config
	Store *Store
}

func (g *GoogleCalendar) oauthConfig() *oauth2.Config {
	if g.Cfg.GoogleClientID == "" || g.Cfg.GoogleClientSecret == "" || g.Cfg.GoogleRedirectURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     g.Cfg.GoogleClientID,
		ClientSecret: g.Cfg.GoogleClientSecret,
		RedirectURL:  g.Cfg.GoogleRedirectURL,
		Scopes: []string{
			calendar.CalendarScope,
			calendar.CalendarEventsScope,
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
		},
		Endpoint: google.Endpoint,
	}
}

func (g *GoogleCalendar) tokenSource(ctx context.Context, h *Host) oauth2.TokenSource {
	conf := g.oauthConfig()
	if conf == nil {
		return nil
	}
	// Expiry is not persisted, so mark the access token stale and let the
	// refresh token mint a fresh one.
	tok := &oauth2.Token{
		AccessToken:  h.GoogleAccessToken,
		RefreshToken: h.GoogleRefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	if h.GoogleRefreshToken == "" {
		tok.Expiry = time.Time{}
	}
	return conf.TokenSource(ctx, tok)
}

func (g *GoogleCalendar) calendarService(ctx context.Context, h *Host) (*calendar.Service, error) {
	ts := g.tokenSource(ctx, h)
	if ts == nil {
		return nil, fmt.Errorf("google calendar not configured")
	}
	return calendar.NewService(ctx, option.WithTokenSource(ts))
}

func (g *GoogleCalendar) connectedHost(ctx context.Context, hostID string) (*Host, error) {
	h, err := g.Store.GetHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if h.GoogleAccessToken == "" || h.GoogleRefreshToken == "" {
		return nil, nil
	}
	return h, nil
}

// GetBusy queries free/busy on the host's primary calendar.
func (g *GoogleCalendar) GetBusy(ctx context.Context, hostID string, rangeStart, rangeEnd time.Time) ([]schedule.Interval, error) {
	h, err := g.connectedHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}
	srv, err := g.calendarService(ctx, h)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: rangeStart.Format(time.RFC3339),
		TimeMax: rangeEnd.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	var busy []schedule.Interval
	if cal, ok := resp.Calendars["primary"]; ok {
		for _, p := range cal.Busy {
			start, err := time.Parse(time.RFC3339, p.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, p.End)
			if err != nil {
				continue
			}
			busy = append(busy, schedule.Interval{Start: start, End: end})
		}
	}
	return busy, nil
}

// CreateEvent inserts the booking event on the host's primary calendar,
// inviting the guest and optionally requesting a Meet link.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, hostID string, ev schedule.Event) (schedule.EventRef, error) {
	h, err := g.connectedHost(ctx, hostID)
	if err != nil {
		return schedule.EventRef{}, err
	}
	if h == nil {
		// Calendar not connected; the booking stands on its own.
		return schedule.EventRef{}, nil
	}
	srv, err := g.calendarService(ctx, h)
	if err != nil {
		return schedule.EventRef{}, err
	}

	event := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Slot.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.Slot.End.Format(time.RFC3339)},
		Attendees:   []*calendar.EventAttendee{{Email: ev.GuestEmail}},
	}
	call := srv.Events.Insert("primary", event).SendUpdates("all")
	if ev.WithMeet {
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             fmt.Sprintf("meet-%d", time.Now().UnixNano()),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return schedule.EventRef{}, fmt.Errorf("events.insert: %w", err)
	}
	return schedule.EventRef{ID: created.Id, MeetLink: created.HangoutLink}, nil
}

// GoogleAuthHandler starts the OAuth2 flow for a host.
// GET /api/calendar/auth?host_id=...
func (a *App) GoogleAuthHandler(c *gin.Context) {
	gc := &GoogleCalendar{Cfg: a.Cfg, Store: &Store{DB: a.DB}}
	conf := gc.oauthConfig()
	if conf == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}
	hostID := c.Query("host_id")
	if hostID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host_id required"})
		return
	}

	state := fmt.Sprintf("host_%s_%d", hostID, time.Now().Unix())
	url := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"auth_url": url, "state": state})
}

// GoogleOAuth2CallbackHandler exchanges the code and stores tokens on the host.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	gc := &GoogleCalendar{Cfg: a.Cfg, Store: &Store{DB: a.DB}}
	conf := gc.oauthConfig()
	if conf == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	hostID := hostIDFromState(state)
	if hostID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}

	token, err := conf.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}

	if err := gc.Store.SaveGoogleTokens(c.Request.Context(), hostID, token.AccessToken, token.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Google Calendar connected", "host_id": hostID})
}

func hostIDFromState(state string) string {
	// state is "host_<id>_<unix>"
	if !strings.HasPrefix(state, "host_") {
		return ""
	}
	rest := strings.TrimPrefix(state, "host_")
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return ""
	}
	return rest[:i]
}

// GetCalendarEventsHandler lists upcoming events from the host's calendar.
// GET /api/hosts/:id/calendar/events?time_min=ISO&time_max=ISO
func (a *App) GetCalendarEventsHandler(c *gin.Context) {
	hostID := c.Param("id")
	ctx := c.Request.Context()

	gc := &GoogleCalendar{Cfg: a.Cfg, Store: &Store{DB: a.DB}}
	h, err := gc.connectedHost(ctx, hostID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if h == nil {
		c.JSON(http.StatusOK, gin.H{"events": []CalendarEvent{}, "connected": false})
		return
	}

	srv, err := gc.calendarService(ctx, h)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create calendar service"})
		return
	}

	call := srv.Events.List("primary").SingleEvents(true).OrderBy("startTime").MaxResults(250)
	if v := c.Query("time_min"); v != "" {
		call = call.TimeMin(v)
	} else {
		call = call.TimeMin(time.Now().Format(time.RFC3339))
	}
	if v := c.Query("time_max"); v != "" {
		call = call.TimeMax(v)
	} else {
		call = call.TimeMax(time.Now().AddDate(0, 0, 14).Format(time.RFC3339))
	}

	events, err := call.Context(ctx).Do()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to retrieve events: %v", err)})
		return
	}

	var out []CalendarEvent
	for _, item := range events.Items {
		ev := CalendarEvent{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Status:      item.Status,
			MeetLink:    item.HangoutLink,
		}
		if item.Creator != nil {
			ev.Creator = item.Creator.Email
		}
		ev.StartTime = parseEventTime(item.Start)
		ev.EndTime = parseEventTime(item.End)
		out = append(out, ev)
	}

	c.JSON(http.StatusOK, gin.H{"events": out, "count": len(out), "connected": true})
}

func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
