package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	t.Run("weekly adds interval weeks", func(t *testing.T) {
		next, err := NextOccurrence(date(2025, time.March, 3), FrequencyWeekly, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.March, 10), next)
	})

	t.Run("biweekly interval multiplies the two week base", func(t *testing.T) {
		next, err := NextOccurrence(date(2025, time.March, 3), FrequencyBiweekly, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.March, 31), next, "interval=2 must mean +4 weeks, not +2")
	})

	t.Run("monthly clamps day of month instead of rolling over", func(t *testing.T) {
		next, err := NextOccurrence(date(2025, time.January, 31), FrequencyMonthly, 1, 31)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.February, 28), next)
	})

	t.Run("monthly clamp respects leap years", func(t *testing.T) {
		next, err := NextOccurrence(date(2024, time.January, 31), FrequencyMonthly, 1, 31)
		require.NoError(t, err)
		assert.Equal(t, date(2024, time.February, 29), next)
	})

	t.Run("quarterly crosses year boundary", func(t *testing.T) {
		next, err := NextOccurrence(date(2025, time.November, 15), FrequencyQuarterly, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.February, 15), next)
	})

	t.Run("biannual and annual month steps", func(t *testing.T) {
		next, err := NextOccurrence(date(2025, time.April, 1), FrequencyBiannual, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.October, 1), next)

		next, err = NextOccurrence(date(2025, time.April, 1), FrequencyAnnual, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, date(2027, time.April, 1), next)
	})

	t.Run("day of month anchor is applied to the target month", func(t *testing.T) {
		next, err := NextOccurrence(date(2025, time.January, 5), FrequencyMonthly, 1, 15)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.February, 15), next)
	})

	t.Run("day of month ignored for weekly cadences", func(t *testing.T) {
		next, err := NextOccurrence(date(2025, time.March, 3), FrequencyWeekly, 1, 28)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.March, 10), next)
	})

	t.Run("time of day is discarded", func(t *testing.T) {
		current := time.Date(2025, time.March, 3, 17, 45, 12, 0, time.UTC)
		next, err := NextOccurrence(current, FrequencyWeekly, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.March, 10), next)
	})

	t.Run("unknown frequency fails", func(t *testing.T) {
		_, err := NextOccurrence(date(2025, time.March, 3), Frequency("DAILY"), 1, 0)
		assert.ErrorIs(t, err, ErrUnknownFrequency)
	})
}

func TestDueOn(t *testing.T) {
	next := date(2025, time.June, 10)

	t.Run("due when asOf equals nextDate", func(t *testing.T) {
		assert.True(t, DueOn(next, nil, date(2025, time.June, 10)))
	})

	t.Run("due when asOf is past nextDate", func(t *testing.T) {
		assert.True(t, DueOn(next, nil, date(2025, time.June, 12)))
	})

	t.Run("not due before nextDate", func(t *testing.T) {
		assert.False(t, DueOn(next, nil, date(2025, time.June, 9)))
	})

	t.Run("end date boundary is inclusive", func(t *testing.T) {
		end := date(2025, time.June, 10)
		assert.True(t, DueOn(next, &end, date(2025, time.June, 10)))

		earlier := date(2025, time.June, 9)
		assert.False(t, DueOn(next, &earlier, date(2025, time.June, 10)))
	})
}

func TestPeriodsBetween(t *testing.T) {
	t.Run("counts monthly periods", func(t *testing.T) {
		n, err := PeriodsBetween(date(2025, time.January, 1), date(2025, time.July, 1), FrequencyMonthly, 1)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
	})

	t.Run("zero when start not before end", func(t *testing.T) {
		n, err := PeriodsBetween(date(2025, time.July, 1), date(2025, time.July, 1), FrequencyMonthly, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("weekly periods over one month", func(t *testing.T) {
		n, err := PeriodsBetween(date(2025, time.January, 6), date(2025, time.February, 3), FrequencyWeekly, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("iteration guard trips on runaway ranges", func(t *testing.T) {
		_, err := PeriodsBetween(date(1900, time.January, 1), date(2100, time.January, 1), FrequencyWeekly, 1)
		assert.ErrorIs(t, err, ErrPeriodIterationLimit)
	})
}

func TestRecurringRevenue(t *testing.T) {
	t.Run("annual normalizes to a twelfth", func(t *testing.T) {
		mrr, err := MonthlyRecurringRevenue(decimal.NewFromInt(1200), FrequencyAnnual, 1)
		require.NoError(t, err)
		assert.True(t, mrr.Equal(decimal.NewFromInt(100)), "got %s", mrr)
	})

	t.Run("quarterly normalizes to a third", func(t *testing.T) {
		mrr, err := MonthlyRecurringRevenue(decimal.NewFromInt(300), FrequencyQuarterly, 1)
		require.NoError(t, err)
		assert.True(t, mrr.Equal(decimal.NewFromInt(100)), "got %s", mrr)
	})

	t.Run("interval divides the normalized amount", func(t *testing.T) {
		mrr, err := MonthlyRecurringRevenue(decimal.NewFromInt(1200), FrequencyAnnual, 2)
		require.NoError(t, err)
		assert.True(t, mrr.Equal(decimal.NewFromInt(50)), "got %s", mrr)
	})

	t.Run("arr is twelve monthly equivalents", func(t *testing.T) {
		arr, err := AnnualRecurringRevenue(decimal.NewFromInt(100), FrequencyMonthly, 1)
		require.NoError(t, err)
		assert.True(t, arr.Equal(decimal.NewFromInt(1200)), "got %s", arr)
	})

	t.Run("weekly uses the 52 week year convention", func(t *testing.T) {
		mrr, err := MonthlyRecurringRevenue(decimal.NewFromInt(12), FrequencyWeekly, 1)
		require.NoError(t, err)
		assert.True(t, mrr.Equal(decimal.NewFromInt(52)), "got %s", mrr)
	})
}
