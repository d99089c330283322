package delivery

import (
	"fmt"
	"time"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

const (
	dateLayout        = "Jan 02, 2006"
	todayLabel        = "Today"
	DefaultCutoffHour = 10
)

// Status summarises where today falls relative to a delivery window.
type Status string

const (
	StatusOverdue  Status = "OVERDUE"
	StatusTomorrow Status = "TOMORROW"
	StatusToday    Status = "TODAY"
	StatusOngoing  Status = "ONGOING"
	StatusUpcoming Status = "UPCOMING"
)

// InDays renders the countdown status for a window that starts n days from today.
func InDays(n int) Status {
	if n == 1 {
		return StatusTomorrow
	}
	return Status(fmt.Sprintf("IN %d DAYS", n))
}

// Override replaces the option's transit days, typically with a carrier quote.
type Override struct {
	MinDays int
	MaxDays int
}

// Window is the rendered delivery estimate for one line.
type Window struct {
	Range   string    `json:"range"`
	Status  Status    `json:"status"`
	MinDate time.Time `json:"min_date"`
	MaxDate time.Time `json:"max_date"`
	Overdue bool      `json:"overdue"`
}

// Calculator derives delivery windows. It never reads the clock.
type Calculator struct {
	cutoffHour int
}

func NewCalculator(cutoffHour int) Calculator {
	if cutoffHour < 0 || cutoffHour > 23 {
		cutoffHour = DefaultCutoffHour
	}
	return Calculator{cutoffHour: cutoffHour}
}

// DateRange renders the window for opt relative to ref. asOf is the instant
// the window is read at and defaults to ref when zero.
func (c Calculator) DateRange(opt models.DeliveryOption, ref, asOf time.Time, override *Override) string {
	return c.Window(opt, ref, asOf, override).Range
}

// Status derives the delivery status for the same inputs as DateRange.
func (c Calculator) Status(opt models.DeliveryOption, ref, asOf time.Time, override *Override) Status {
	return c.Window(opt, ref, asOf, override).Status
}

// Window computes both the rendered range and its status.
func (c Calculator) Window(opt models.DeliveryOption, ref, asOf time.Time, override *Override) Window {
	if asOf.IsZero() {
		asOf = ref
	}
	refDay := civilDate(ref)
	today := civilDate(asOf.In(ref.Location()))

	if opt.SameDay && opt.Scope == enums.DeliveryScopeLocal && today.Equal(refDay) {
		if ref.Hour() >= c.cutoffHour {
			tomorrow := refDay.AddDate(0, 0, 1)
			return Window{Range: tomorrow.Format(dateLayout), Status: StatusTomorrow, MinDate: tomorrow, MaxDate: tomorrow}
		}
		return Window{Range: todayLabel, Status: StatusToday, MinDate: refDay, MaxDate: refDay}
	}

	minDays, maxDays := opt.MinDays, opt.MaxDays
	if override != nil {
		minDays, maxDays = override.MinDays, override.MaxDays
	}
	if opt.SameDay && opt.Scope == enums.DeliveryScopeLocal && override == nil {
		minDays, maxDays = 0, 0
		if ref.Hour() >= c.cutoffHour {
			minDays, maxDays = 1, 1
		}
	}

	return render(refDay.AddDate(0, 0, minDays), refDay.AddDate(0, 0, maxDays), today)
}

// OverallRange merges line windows into one range, ignoring overdue lines.
// ok is false when nothing remains to merge.
func (c Calculator) OverallRange(windows []Window, asOf time.Time) (Window, bool) {
	var minDate, maxDate time.Time
	for _, w := range windows {
		if w.Overdue || w.MinDate.IsZero() || w.MaxDate.IsZero() {
			continue
		}
		if minDate.IsZero() || w.MinDate.Before(minDate) {
			minDate = w.MinDate
		}
		if maxDate.IsZero() || w.MaxDate.After(maxDate) {
			maxDate = w.MaxDate
		}
	}
	if minDate.IsZero() {
		return Window{}, false
	}
	return render(minDate, maxDate, civilDate(asOf)), true
}

func render(minDate, maxDate, today time.Time) Window {
	w := Window{MinDate: minDate, MaxDate: maxDate, Status: statusFor(minDate, maxDate, today)}
	if maxDate.Before(today) {
		w.Overdue = true
		w.Range = fmt.Sprintf("Overdue (expected by %s)", maxDate.Format(dateLayout))
		return w
	}

	from := label(minDate, today)
	to := label(maxDate, today)
	if from == to {
		w.Range = from
		return w
	}
	w.Range = from + " to " + to
	return w
}

func statusFor(minDate, maxDate, today time.Time) Status {
	switch {
	case maxDate.Before(today):
		return StatusOverdue
	case minDate.After(today):
		return InDays(daysBetween(today, minDate))
	case minDate.Equal(today) && maxDate.Equal(today):
		return StatusToday
	case !today.Before(minDate) && !today.After(maxDate):
		return StatusOngoing
	default:
		return StatusUpcoming
	}
}

func label(day, today time.Time) string {
	if day.Equal(today) {
		return todayLabel
	}
	return day.Format(dateLayout)
}

// civilDate drops the clock and zone, keeping the calendar date as seen in t's location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
