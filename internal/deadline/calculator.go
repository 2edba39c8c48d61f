// Package deadline computes UK statutory filing deadlines from company
// registry data. All functions are pure; malformed inputs degrade to nil
// rather than erroring, so display paths tolerate partial data.
package deadline

import (
	"errors"
	"time"
)

var ErrDeadlineUnresolvable = errors.New("deadline_unresolvable")

// ClientAccountingData is the registry-derived input to the calculator.
// ARD day/month are year-less; the applicable year is always derived.
type ClientAccountingData struct {
	IncorporationDate    *time.Time
	LastAccountsMadeUpTo *time.Time
	NextAccountsDue      *time.Time
	ARDDay               int
	ARDMonth             int
}

// ResolveAccountingReferenceYear picks the year the stored ARD day/month
// applies to. Established filers use last accounts + 1. First-time filers
// derive the first reference date after incorporation, advancing a year
// when that period would be shorter than the six month minimum.
func ResolveAccountingReferenceYear(ref ClientAccountingData) (int, error) {
	if ref.LastAccountsMadeUpTo != nil {
		return ref.LastAccountsMadeUpTo.Year() + 1, nil
	}

	if ref.IncorporationDate != nil && validDayMonth(ref.ARDDay, ref.ARDMonth) {
		inc := ref.IncorporationDate.UTC()
		first := ardInYear(ref.ARDDay, ref.ARDMonth, inc.Year())
		if !first.After(inc) {
			first = ardInYear(ref.ARDDay, ref.ARDMonth, inc.Year()+1)
		}
		if first.Before(inc.AddDate(0, 6, 0)) {
			first = ardInYear(ref.ARDDay, ref.ARDMonth, first.Year()+1)
		}
		return first.Year(), nil
	}

	if ref.NextAccountsDue != nil {
		return ref.NextAccountsDue.Year() - 1, nil
	}

	return 0, ErrDeadlineUnresolvable
}

// AccountingReferenceDate combines the resolved year with the stored
// day/month. Absent or malformed input yields nil, never an error.
func AccountingReferenceDate(ref ClientAccountingData) *time.Time {
	if !validDayMonth(ref.ARDDay, ref.ARDMonth) {
		return nil
	}
	year, err := ResolveAccountingReferenceYear(ref)
	if err != nil {
		return nil
	}
	date := ardInYear(ref.ARDDay, ref.ARDMonth, year)
	return &date
}

// AccountsFilingDeadline is nine calendar months after the period year end.
func AccountsFilingDeadline(yearEnd time.Time) time.Time {
	return addMonthsClamped(yearEnd, 9)
}

// CorporationTaxDue is twelve calendar months after the period year end.
func CorporationTaxDue(yearEnd time.Time) time.Time {
	return addMonthsClamped(yearEnd, 12)
}

// FirstYearAccountsDeadline applies the first-time filer rule: accounts are
// due twenty-one months after incorporation.
func FirstYearAccountsDeadline(incorporation time.Time) time.Time {
	return addMonthsClamped(incorporation, 21)
}

// ConfirmationStatementDue is twelve months plus fourteen days after the
// last confirmation date (or incorporation for a new company).
func ConfirmationStatementDue(base time.Time) time.Time {
	return addMonthsClamped(base, 12).AddDate(0, 0, 14)
}

func validDayMonth(day, month int) bool {
	if month < 1 || month > 12 {
		return false
	}
	if day < 1 || day > daysInMonth(month, 2024) {
		return false
	}
	return true
}

// ardInYear builds the calendar date for a year-less ARD, clamping the day
// to the month length (29 Feb outside leap years becomes 28 Feb).
func ardInYear(day, month, year int) time.Time {
	if max := daysInMonth(month, year); day > max {
		day = max
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// addMonthsClamped adds calendar months without overflowing into the next
// month (31 Jan + 1 month is 28/29 Feb, not 3 Mar).
func addMonthsClamped(t time.Time, months int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	m := int(month) + months
	y := year + (m-1)/12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		y--
	}
	if max := daysInMonth(m, y); day > max {
		day = max
	}
	return time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(month, year int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
