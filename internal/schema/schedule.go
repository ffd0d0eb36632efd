package schema

import "fmt"

// Frequency names a recurrence rule for scheduled tasks.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// ScheduledTask is a template that spawns a concrete task each time it
// fires. It is created once, has next_run_at advanced on every firing, and
// is only ever removed explicitly.
type ScheduledTask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Priority  string    `json:"priority,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	DueDate   string    `json:"due_date,omitempty"`
	Frequency Frequency `json:"frequency"`

	// Recurrence parameters; which ones apply depends on Frequency.
	WeekDay    int `json:"week_day,omitempty"`    // 1=Monday .. 7=Sunday
	MonthDay   int `json:"month_day,omitempty"`   // 1-31, clamped to month length
	QuarterDay int `json:"quarter_day,omitempty"` // day within the quarter's first month
	YearMonth  int `json:"year_month,omitempty"`  // 1-12
	YearDay    int `json:"year_day,omitempty"`    // day within YearMonth, clamped

	NextRunAt string `json:"next_run_at"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// Validate checks the schedule before it is stored.
func (s *ScheduledTask) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	switch s.Frequency {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
	default:
		return fmt.Errorf("unknown frequency %q", s.Frequency)
	}
	if s.Frequency == Weekly && (s.WeekDay < 1 || s.WeekDay > 7) {
		return fmt.Errorf("week_day must be 1-7 (got %d)", s.WeekDay)
	}
	if s.Frequency == Monthly && (s.MonthDay < 1 || s.MonthDay > 31) {
		return fmt.Errorf("month_day must be 1-31 (got %d)", s.MonthDay)
	}
	if s.Frequency == Yearly && (s.YearMonth < 1 || s.YearMonth > 12) {
		return fmt.Errorf("year_month must be 1-12 (got %d)", s.YearMonth)
	}
	return nil
}
