package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jobtrack-service/internal/schedule"
)

func abortWithError(c *gin.Context, err error) {
	var verr *schedule.ValidationError
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, schedule.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": schedule.ErrSlotUnavailable.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func hostLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func intQuery(c *gin.Context, name string, def, max int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}

// POST /api/hosts/:id/availability
// Replaces the host's full weekly rule set, the way the settings grid saves.
func (a *App) SetAvailabilityHandler(c *gin.Context) {
	hostID := c.Param("id")
	var payload []AvailabilityRule
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, r := range payload {
		rule := schedule.Rule{DayOfWeek: r.DayOfWeek, StartTime: r.StartTime, EndTime: r.EndTime, Timezone: r.Timezone}
		if err := rule.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	ctx := c.Request.Context()

	store := &Store{DB: a.DB}
	saved, err := store.ReplaceAvailabilityRules(ctx, hostID, payload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	a.Cache.Invalidate(ctx, hostID, a.Logger)

	c.JSON(http.StatusCreated, saved)
}

// PUT /api/hosts/:id/availability/:rule_id
func (a *App) UpdateAvailabilityHandler(c *gin.Context) {
	hostID := c.Param("id")
	ruleID := c.Param("rule_id")

	var payload AvailabilityRule
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule := schedule.Rule{DayOfWeek: payload.DayOfWeek, StartTime: payload.StartTime, EndTime: payload.EndTime, Timezone: payload.Timezone}
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	store := &Store{DB: a.DB}
	if err := store.UpdateAvailabilityRule(ctx, hostID, ruleID, &payload); err != nil {
		abortWithError(c, err)
		return
	}
	a.Cache.Invalidate(ctx, hostID, a.Logger)

	c.JSON(http.StatusOK, payload)
}

// GET /api/hosts/:id/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	store := &Store{DB: a.DB}
	rules, err := store.ListAvailabilityRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// DELETE /api/hosts/:id/availability/:rule_id
func (a *App) DeleteAvailabilityHandler(c *gin.Context) {
	hostID := c.Param("id")
	ctx := c.Request.Context()
	store := &Store{DB: a.DB}
	if err := store.DeleteAvailabilityRule(ctx, hostID, c.Param("rule_id")); err != nil {
		abortWithError(c, err)
		return
	}
	a.Cache.Invalidate(ctx, hostID, a.Logger)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/hosts/:id/slots?days=14&duration=30
// The host's own availability preview; same engine as the public page.
func (a *App) GetSlotsHandler(c *gin.Context) {
	hostID := c.Param("id")
	days := intQuery(c, "days", 14, 60)
	durationMins := intQuery(c, "duration", 30, 8*60)
	ctx := c.Request.Context()

	store := &Store{DB: a.DB}
	host, err := store.GetHost(ctx, hostID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	loc := hostLocation(host.Timezone)

	if grid, ok := a.Cache.Get(ctx, hostID, days, durationMins); ok {
		c.JSON(http.StatusOK, gin.H{"slots": grid})
		return
	}

	grid, err := a.Engine.Availability(ctx, hostID, loc, days, time.Duration(durationMins)*time.Minute)
	if err != nil {
		abortWithError(c, err)
		return
	}
	a.Cache.Set(ctx, hostID, days, durationMins, grid)

	c.JSON(http.StatusOK, gin.H{"slots": grid})
}

// GET /book/:slug?days=14
// Public: booking link metadata plus the availability grid.
func (a *App) GetBookingPageHandler(c *gin.Context) {
	slug := c.Param("slug")
	days := intQuery(c, "days", 14, 60)
	ctx := c.Request.Context()

	store := &Store{DB: a.DB}
	link, host, err := store.GetBookingLink(ctx, slug)
	if err != nil {
		abortWithError(c, err)
		return
	}
	loc := hostLocation(host.Timezone)

	grid, ok := a.Cache.Get(ctx, host.ID, days, link.DurationMins)
	if !ok {
		grid, err = a.Engine.Availability(ctx, host.ID, loc, days, time.Duration(link.DurationMins)*time.Minute)
		if err != nil {
			abortWithError(c, err)
			return
		}
		a.Cache.Set(ctx, host.ID, days, link.DurationMins, grid)
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_link": gin.H{
			"slug":         link.Slug,
			"title":        link.Title,
			"description":  link.Description,
			"duration":     link.DurationMins,
			"meeting_type": link.MeetingType,
		},
		"host": gin.H{
			"name":     host.Name,
			"timezone": host.Timezone,
		},
		"slots": grid,
	})
}

type createBookingReq struct {
	Date        string `json:"date" binding:"required"` // "2006-01-02"
	Time        string `json:"time" binding:"required"` // "HH:MM"
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Company     string `json:"company,omitempty"`
	Role        string `json:"role,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
	MeetingType string `json:"meeting_type,omitempty"`
}

// POST /book/:slug
// Public: run the chosen slot through the booking conflict guard.
func (a *App) CreateBookingHandler(c *gin.Context) {
	slug := c.Param("slug")
	var req createBookingReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	store := &Store{DB: a.DB}
	link, host, err := store.GetBookingLink(ctx, slug)
	if err != nil {
		abortWithError(c, err)
		return
	}

	conf, err := a.Engine.Book(ctx, schedule.BookingLink{
		HostID:      host.ID,
		HostName:    host.Name,
		Title:       link.Title,
		Duration:    time.Duration(link.DurationMins) * time.Minute,
		MeetingType: link.MeetingType,
		Timezone:    hostLocation(host.Timezone),
	}, schedule.GuestInfo{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
		Role:    req.Role,
		Phone:   req.Phone,
		Notes:   req.Notes,
	}, req.Date, req.Time, req.MeetingType)
	if err != nil {
		abortWithError(c, err)
		return
	}

	a.Cache.Invalidate(ctx, host.ID, a.Logger)
	a.Logger.Info("booking confirmed",
		zap.String("host_id", host.ID),
		zap.String("booking_id", conf.BookingID),
		zap.String("date", conf.Date),
		zap.String("time", conf.Time))

	c.JSON(http.StatusCreated, gin.H{"success": true, "booking": conf})
}

// GET /api/hosts/:id/bookings?from=ISO&to=ISO
func (a *App) ListBookingsHandler(c *gin.Context) {
	hostID := c.Param("id")
	fromStr := c.Query("from")
	toStr := c.Query("to")
	ctx := c.Request.Context()

	var (
		from, to time.Time
		err      error
	)
	if fromStr != "" && toStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
			return
		}
	}

	store := &Store{DB: a.DB}
	bookings, err := store.ListBookings(ctx, hostID, from, to, fromStr != "" && toStr != "")
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// DELETE /api/bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	ctx := c.Request.Context()
	store := &Store{DB: a.DB}
	hostID, err := store.CancelBooking(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	// The freed slot must reappear on the grid right away.
	a.Cache.Invalidate(ctx, hostID, a.Logger)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
