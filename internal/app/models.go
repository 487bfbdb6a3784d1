package app

import "time"

// Host is the person whose availability is published and booked.
type Host struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Timezone  string    `json:"timezone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Google OAuth tokens; empty when the calendar is not connected.
	GoogleAccessToken  string `json:"-"`
	GoogleRefreshToken string `json:"-"`
}

type AvailabilityRule struct {
	ID        int       `json:"id"`
	HostID    string    `json:"host_id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Timezone  string    `json:"timezone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// BookingLink is the public page a guest books through.
type BookingLink struct {
	ID           string `json:"id"`
	HostID       string `json:"host_id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	DurationMins int    `json:"duration"`
	MeetingType  string `json:"meeting_type"`
	Active       bool   `json:"active"`
}

type Booking struct {
	ID              string    `json:"id"`
	HostID          string    `json:"host_id"`
	SlotStart       time.Time `json:"slot_start"`
	SlotEnd         time.Time `json:"slot_end"`
	DurationMins    int       `json:"duration"`
	GuestName       string    `json:"guest_name"`
	GuestEmail      string    `json:"guest_email"`
	GuestCompany    string    `json:"guest_company,omitempty"`
	GuestRole       string    `json:"guest_role,omitempty"`
	GuestPhone      string    `json:"guest_phone,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	MeetingType     string    `json:"meeting_type,omitempty"`
	Status          string    `json:"status"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Company is one card on the job-search Kanban board.
type Company struct {
	ID              string    `json:"id"`
	HostID          string    `json:"host_id"`
	Name            string    `json:"name"`
	Industry        string    `json:"industry,omitempty"`
	JobTitle        string    `json:"job_title,omitempty"`
	Stage           string    `json:"stage"`
	Priority        string    `json:"priority,omitempty"`
	SalaryMin       int       `json:"salary_min,omitempty"`
	SalaryMax       int       `json:"salary_max,omitempty"`
	TotalRounds     int       `json:"total_rounds,omitempty"`
	CompletedRounds int       `json:"completed_rounds,omitempty"`
	AppliedDate     string    `json:"applied_date,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Stage is one column of the board, ordered left to right.
type Stage struct {
	ID      string `json:"id"`
	HostID  string `json:"host_id"`
	Key     string `json:"key"`
	Label   string `json:"label"`
	Order   int    `json:"order"`
	Enabled bool   `json:"enabled"`
}
