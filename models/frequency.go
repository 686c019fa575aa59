package models

import (
	"database/sql/driver"
	"fmt"
)

// Frequency represents the cadence of a recurring schedule
type Frequency string

const (
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyBiweekly  Frequency = "BIWEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyBiannual  Frequency = "BIANNUAL"
	FrequencyAnnual    Frequency = "ANNUAL"
)

// String returns the string representation of the frequency
func (f Frequency) String() string {
	return string(f)
}

// Valid checks if the frequency is valid
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyBiannual, FrequencyAnnual:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for Frequency
func (f *Frequency) Scan(value any) error {
	if value == nil {
		*f = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*f = Frequency(v)
	case []byte:
		*f = Frequency(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Frequency", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Frequency
func (f Frequency) Value() (driver.Value, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid Frequency: %s", f)
	}
	return string(f), nil
}

// IsMonthBased reports whether the cadence steps in whole months.
// Week-based cadences ignore dayOfMonth.
func (f Frequency) IsMonthBased() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyBiannual, FrequencyAnnual:
		return true
	default:
		return false
	}
}

// MonthsPerStep returns the month increment for month-based cadences.
// Zero for week-based cadences.
func (f Frequency) MonthsPerStep() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyBiannual:
		return 6
	case FrequencyAnnual:
		return 12
	default:
		return 0
	}
}

// WeeksPerStep returns the week increment for week-based cadences.
// Zero for month-based cadences. BIWEEKLY has a fixed 2-week base that the
// interval multiplies.
func (f Frequency) WeeksPerStep() int {
	switch f {
	case FrequencyWeekly:
		return 1
	case FrequencyBiweekly:
		return 2
	default:
		return 0
	}
}

// CyclesPerYear returns how many occurrences one year holds at interval=1.
// Week-based cadences use the 52-week-year convention.
func (f Frequency) CyclesPerYear() int64 {
	switch f {
	case FrequencyWeekly:
		return 52
	case FrequencyBiweekly:
		return 26
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	case FrequencyBiannual:
		return 2
	case FrequencyAnnual:
		return 1
	default:
		return 0
	}
}
