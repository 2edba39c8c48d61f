package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateVATQuarter(t *testing.T) {
	tests := []struct {
		name      string
		group     QuarterGroup
		ref       time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantDue   time.Time
	}{
		{
			name:      "group one march ref is the january to march quarter",
			group:     QuarterGroup1,
			ref:       date(2025, time.March, 1),
			wantStart: date(2025, time.January, 1),
			wantEnd:   date(2025, time.March, 31),
			wantDue:   date(2025, time.May, 7),
		},
		{
			name:      "group one on quarter end day",
			group:     QuarterGroup1,
			ref:       date(2024, time.June, 30),
			wantStart: date(2024, time.April, 1),
			wantEnd:   date(2024, time.June, 30),
			wantDue:   date(2024, time.August, 6),
		},
		{
			name:      "group two january end clamps due to leap february",
			group:     QuarterGroup2,
			ref:       date(2024, time.January, 5),
			wantStart: date(2023, time.November, 1),
			wantEnd:   date(2024, time.January, 31),
			wantDue:   date(2024, time.March, 7),
		},
		{
			name:      "group three september ref rolls to november end",
			group:     QuarterGroup3,
			ref:       date(2024, time.September, 20),
			wantStart: date(2024, time.September, 1),
			wantEnd:   date(2024, time.November, 30),
			wantDue:   date(2025, time.January, 6),
		},
		{
			name:      "group two november ref crosses year boundary",
			group:     QuarterGroup2,
			ref:       date(2024, time.November, 15),
			wantStart: date(2024, time.November, 1),
			wantEnd:   date(2025, time.January, 31),
			wantDue:   date(2025, time.March, 7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateVATQuarter(tt.group, tt.ref)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStart, got.StartDate)
			assert.Equal(t, tt.wantEnd, got.EndDate)
			assert.Equal(t, tt.wantDue, got.FilingDueDate)
			assert.Equal(t, tt.group, got.Group)
			assert.Equal(t, PeriodKey(tt.wantStart, tt.wantEnd), got.PeriodKey)
		})
	}
}

func TestCalculateVATQuarter_Idempotent(t *testing.T) {
	first, err := CalculateVATQuarter(QuarterGroup2, date(2024, time.July, 2))
	assert.NoError(t, err)
	second, err := CalculateVATQuarter(QuarterGroup2, first.StartDate)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculateVATQuarter_InvalidGroup(t *testing.T) {
	_, err := CalculateVATQuarter(QuarterGroup(0), date(2024, time.January, 1))
	assert.ErrorIs(t, err, ErrInvalidQuarterGroup)
	_, err = CalculateVATQuarter(QuarterGroup(4), date(2024, time.January, 1))
	assert.ErrorIs(t, err, ErrInvalidQuarterGroup)
}

func TestNextVATQuarter(t *testing.T) {
	current, err := CalculateVATQuarter(QuarterGroup2, date(2024, time.October, 31))
	assert.NoError(t, err)
	assert.Equal(t, date(2024, time.October, 31), current.EndDate)

	next, err := NextVATQuarter(current)
	assert.NoError(t, err)
	assert.Equal(t, date(2024, time.November, 1), next.StartDate)
	assert.Equal(t, date(2025, time.January, 31), next.EndDate)
	assert.Equal(t, date(2025, time.March, 7), next.FilingDueDate)
}
