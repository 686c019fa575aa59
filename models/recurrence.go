package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/shopspring/decimal"
)

// maxPeriodIterations bounds PeriodsBetween against runaway loops caused by
// bad input (e.g. reversed start/end dates). Tunable, but exceeding it is a
// fatal data error, never a retryable condition.
const maxPeriodIterations = 1000

var (
	// ErrUnknownFrequency indicates a cadence value outside the closed enum
	ErrUnknownFrequency = errors.New("unknown frequency")

	// ErrPeriodIterationLimit indicates PeriodsBetween walked past the
	// iteration guard
	ErrPeriodIterationLimit = fmt.Errorf("periods between dates exceeded %d iterations", maxPeriodIterations)
)

// NextOccurrence computes the occurrence that follows current for the given
// cadence. The result is always normalized to start-of-day UTC.
//
// Week-based cadences step in whole weeks; dayOfMonth is ignored for them.
// Month-based cadences add interval x {1,3,6,12} months and clamp the day of
// month to the target month's length, so a schedule anchored on the 31st
// lands on Feb 28/29 instead of rolling into March. dayOfMonth <= 0 keeps the
// current day-of-month as the anchor.
func NextOccurrence(current time.Time, frequency Frequency, interval int, dayOfMonth int) (time.Time, error) {
	if !frequency.Valid() {
		return time.Time{}, ErrUnknownFrequency
	}
	if interval < 1 {
		interval = 1
	}

	base := utils.StartOfDayUTC(current)

	if !frequency.IsMonthBased() {
		return base.AddDate(0, 0, 7*frequency.WeeksPerStep()*interval), nil
	}

	// Month arithmetic done by hand: time.AddDate normalizes Jan 31 + 1
	// month into Mar 2/3, which would silently skip February.
	months := frequency.MonthsPerStep() * interval
	total := int(base.Month()) - 1 + months
	year := base.Year() + total/12
	month := time.Month(total%12 + 1)

	day := base.Day()
	if dayOfMonth > 0 {
		day = dayOfMonth
	}
	if dim := DaysInMonth(year, month); day > dim {
		day = dim
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueOn reports whether a schedule cursor is due as of the given date:
// asOf >= nextDate (date-only comparison) and, when an end date is set,
// asOf <= endDate (inclusive boundary).
func DueOn(nextDate time.Time, endDate *time.Time, asOf time.Time) bool {
	day := utils.StartOfDayUTC(asOf)
	if day.Before(utils.StartOfDayUTC(nextDate)) {
		return false
	}
	if endDate != nil && day.After(utils.StartOfDayUTC(*endDate)) {
		return false
	}
	return true
}

// PeriodsBetween counts how many occurrences fall strictly before end when
// walking the cadence from start. It hard-fails past maxPeriodIterations.
func PeriodsBetween(start, end time.Time, frequency Frequency, interval int) (int, error) {
	if !frequency.Valid() {
		return 0, ErrUnknownFrequency
	}

	periods := 0
	cursor := utils.StartOfDayUTC(start)
	limit := utils.StartOfDayUTC(end)

	for cursor.Before(limit) {
		periods++
		if periods > maxPeriodIterations {
			return 0, ErrPeriodIterationLimit
		}
		next, err := NextOccurrence(cursor, frequency, interval, 0)
		if err != nil {
			return 0, err
		}
		cursor = next
	}

	return periods, nil
}

// MonthlyRecurringRevenue normalizes one cadence amount to its
// monthly-equivalent revenue: amount x cyclesPerYear / 12 / interval
// (e.g. ANNUAL amount/12, QUARTERLY amount/3).
func MonthlyRecurringRevenue(amount decimal.Decimal, frequency Frequency, interval int) (decimal.Decimal, error) {
	if !frequency.Valid() {
		return decimal.Zero, ErrUnknownFrequency
	}
	if interval < 1 {
		interval = 1
	}
	return amount.
		Mul(decimal.NewFromInt(frequency.CyclesPerYear())).
		Div(decimal.NewFromInt(12)).
		Div(decimal.NewFromInt(int64(interval))), nil
}

// AnnualRecurringRevenue is the monthly-equivalent revenue times twelve
func AnnualRecurringRevenue(amount decimal.Decimal, frequency Frequency, interval int) (decimal.Decimal, error) {
	mrr, err := MonthlyRecurringRevenue(amount, frequency, interval)
	if err != nil {
		return decimal.Zero, err
	}
	return mrr.Mul(decimal.NewFromInt(12)), nil
}
