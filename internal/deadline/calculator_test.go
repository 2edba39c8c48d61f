package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestResolveAccountingReferenceYear(t *testing.T) {
	tests := []struct {
		name    string
		ref     ClientAccountingData
		want    int
		wantErr error
	}{
		{
			name: "established filer uses last accounts plus one",
			ref: ClientAccountingData{
				LastAccountsMadeUpTo: datePtr(2023, time.December, 31),
				IncorporationDate:    datePtr(2019, time.March, 15),
				ARDDay:               31, ARDMonth: 12,
			},
			want: 2024,
		},
		{
			name: "first filer with period over six months",
			ref: ClientAccountingData{
				IncorporationDate: datePtr(2023, time.March, 15),
				ARDDay:            31, ARDMonth: 12,
			},
			want: 2023,
		},
		{
			name: "first filer short period advances a year",
			ref: ClientAccountingData{
				IncorporationDate: datePtr(2023, time.October, 1),
				ARDDay:            31, ARDMonth: 12,
			},
			want: 2024,
		},
		{
			name: "first filer when first date falls before incorporation",
			ref: ClientAccountingData{
				IncorporationDate: datePtr(2023, time.June, 10),
				ARDDay:            31, ARDMonth: 3,
			},
			want: 2024,
		},
		{
			name: "fallback to next accounts due",
			ref: ClientAccountingData{
				NextAccountsDue: datePtr(2025, time.September, 30),
			},
			want: 2024,
		},
		{
			name:    "no data is unresolvable",
			ref:     ClientAccountingData{},
			wantErr: ErrDeadlineUnresolvable,
		},
		{
			name: "incorporation without valid ard falls back",
			ref: ClientAccountingData{
				IncorporationDate: datePtr(2023, time.March, 15),
				NextAccountsDue:   datePtr(2025, time.June, 30),
			},
			want: 2024,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAccountingReferenceYear(tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAccountingReferenceYear_PeriodBounds(t *testing.T) {
	// First period must span at least six and at most eighteen months
	// for every incorporation month.
	for month := time.January; month <= time.December; month++ {
		inc := date(2023, month, 10)
		ref := ClientAccountingData{
			IncorporationDate: &inc,
			ARDDay:            31, ARDMonth: 12,
		}
		year, err := ResolveAccountingReferenceYear(ref)
		assert.NoError(t, err)

		first := date(year, time.December, 31)
		assert.False(t, first.Before(inc.AddDate(0, 6, 0)), "month %v: period under six months", month)
		assert.False(t, first.After(inc.AddDate(0, 18, 0)), "month %v: period over eighteen months", month)
	}
}

func TestAccountingReferenceDate(t *testing.T) {
	t.Run("combines resolved year with day month", func(t *testing.T) {
		got := AccountingReferenceDate(ClientAccountingData{
			LastAccountsMadeUpTo: datePtr(2023, time.December, 31),
			ARDDay:               31, ARDMonth: 12,
		})
		if assert.NotNil(t, got) {
			assert.Equal(t, date(2024, time.December, 31), *got)
		}
	})

	t.Run("clamps leap day outside leap years", func(t *testing.T) {
		got := AccountingReferenceDate(ClientAccountingData{
			LastAccountsMadeUpTo: datePtr(2022, time.February, 28),
			ARDDay:               29, ARDMonth: 2,
		})
		if assert.NotNil(t, got) {
			assert.Equal(t, date(2023, time.February, 28), *got)
		}
	})

	t.Run("malformed day month degrades to nil", func(t *testing.T) {
		assert.Nil(t, AccountingReferenceDate(ClientAccountingData{
			LastAccountsMadeUpTo: datePtr(2023, time.December, 31),
			ARDDay:               0, ARDMonth: 13,
		}))
	})

	t.Run("unresolvable year degrades to nil", func(t *testing.T) {
		assert.Nil(t, AccountingReferenceDate(ClientAccountingData{
			ARDDay: 31, ARDMonth: 12,
		}))
	})
}

func TestStatutoryDeadlines(t *testing.T) {
	t.Run("accounts due nine months after year end", func(t *testing.T) {
		assert.Equal(t, date(2025, time.September, 30), AccountsFilingDeadline(date(2024, time.December, 31)))
	})

	t.Run("accounts due clamps short months", func(t *testing.T) {
		// 31 May + 9 months lands in February.
		assert.Equal(t, date(2025, time.February, 28), AccountsFilingDeadline(date(2024, time.May, 31)))
	})

	t.Run("corporation tax due twelve months after year end", func(t *testing.T) {
		assert.Equal(t, date(2025, time.December, 31), CorporationTaxDue(date(2024, time.December, 31)))
	})

	t.Run("first year accounts due twenty one months after incorporation", func(t *testing.T) {
		assert.Equal(t, date(2024, time.December, 15), FirstYearAccountsDeadline(date(2023, time.March, 15)))
	})

	t.Run("confirmation statement due twelve months plus fourteen days", func(t *testing.T) {
		assert.Equal(t, date(2025, time.March, 24), ConfirmationStatementDue(date(2024, time.March, 10)))
	})
}
