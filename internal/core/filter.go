package core

import (
	"errors"
	"time"
)

const (
	FilterAll     TimeFilter = "all"
	FilterDaily   TimeFilter = "daily"
	FilterWeekly  TimeFilter = "weekly"
	FilterMonthly TimeFilter = "monthly"
	FilterYearly  TimeFilter = "yearly"
)

// TimeFilter restricts a transaction list to the current calendar
// period. Periods are calendar-based (today, this ISO week, this month,
// this year), not rolling windows.
type TimeFilter string

var ErrInvalidFilter = errors.New("invalid time filter")

func ParseTimeFilter(s string) (TimeFilter, error) {
	switch TimeFilter(s) {
	case FilterAll, FilterDaily, FilterWeekly, FilterMonthly, FilterYearly:
		return TimeFilter(s), nil
	case "":
		return FilterAll, nil
	default:
		return "", ErrInvalidFilter
	}
}

// Matches reports whether date falls in the filter's current period
// relative to now. Both instants are evaluated in loc; weeks start on
// Monday.
func (f TimeFilter) Matches(date, now time.Time, loc *time.Location) bool {
	d := date.In(loc)
	n := now.In(loc)

	switch f {
	case FilterDaily:
		return d.Year() == n.Year() && d.YearDay() == n.YearDay()
	case FilterWeekly:
		return startOfWeek(d).Equal(startOfWeek(n))
	case FilterMonthly:
		return d.Year() == n.Year() && d.Month() == n.Month()
	case FilterYearly:
		return d.Year() == n.Year()
	default:
		return true
	}
}

func startOfWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // Sunday belongs to the week that started the previous Monday
	}
	y, m, d := t.AddDate(0, 0, -(wd - 1)).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Filter returns the transactions whose date matches f, preserving the
// input order.
func (f TimeFilter) Filter(txs []Transaction, now time.Time, loc *time.Location) []Transaction {
	if f == FilterAll || f == "" {
		return txs
	}
	var out []Transaction
	for _, tx := range txs {
		if f.Matches(tx.Date, now, loc) {
			out = append(out, tx)
		}
	}
	return out
}
