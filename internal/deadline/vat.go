package deadline

import (
	"fmt"
	"time"
)

// QuarterGroup identifies one of the three HMRC VAT stagger cycles.
type QuarterGroup int

const (
	// QuarterGroup1 has quarter ends in Mar, Jun, Sep and Dec.
	QuarterGroup1 QuarterGroup = 1
	// QuarterGroup2 has quarter ends in Apr, Jul, Oct and Jan.
	QuarterGroup2 QuarterGroup = 2
	// QuarterGroup3 has quarter ends in May, Aug, Nov and Feb.
	QuarterGroup3 QuarterGroup = 3
)

func ValidQuarterGroup(group QuarterGroup) bool {
	return group >= QuarterGroup1 && group <= QuarterGroup3
}

var ErrInvalidQuarterGroup = fmt.Errorf("invalid_quarter_group")

// VATQuarterInfo describes one VAT filing period. PeriodKey is the stable
// "start_end" identifier used to detect duplicate quarters.
type VATQuarterInfo struct {
	PeriodKey     string
	StartDate     time.Time
	EndDate       time.Time
	FilingDueDate time.Time
	Group         QuarterGroup
}

// CalculateVATQuarter returns the quarter containing the reference date.
// Boundaries are a fixed function of group and reference date; the filing
// due date is one calendar month plus seven days after the quarter end.
func CalculateVATQuarter(group QuarterGroup, ref time.Time) (VATQuarterInfo, error) {
	if !ValidQuarterGroup(group) {
		return VATQuarterInfo{}, ErrInvalidQuarterGroup
	}

	ref = ref.UTC()
	endMonth, endYear := quarterEndMonth(group, int(ref.Month()), ref.Year())

	end := time.Date(endYear, time.Month(endMonth), daysInMonth(endMonth, endYear), 0, 0, 0, 0, time.UTC)
	start := time.Date(endYear, time.Month(endMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -2, 0)
	due := addMonthsClamped(end, 1).AddDate(0, 0, 7)

	return VATQuarterInfo{
		PeriodKey:     PeriodKey(start, end),
		StartDate:     start,
		EndDate:       end,
		FilingDueDate: due,
		Group:         group,
	}, nil
}

// NextVATQuarter returns the period immediately following info.
func NextVATQuarter(info VATQuarterInfo) (VATQuarterInfo, error) {
	return CalculateVATQuarter(info.Group, info.EndDate.AddDate(0, 0, 1))
}

// PeriodKey formats the stable period identifier for a quarter.
func PeriodKey(start, end time.Time) string {
	return start.Format("2006-01-02") + "_" + end.Format("2006-01-02")
}

// quarterEndMonth finds the first end month of the group's cycle at or
// after the reference month.
func quarterEndMonth(group QuarterGroup, month, year int) (int, int) {
	for {
		if month%3 == (int(group)+2)%3 {
			return month, year
		}
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
}
