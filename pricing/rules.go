/*
rules.go - Surcharge rule types for the pricing calculator

Weekend config, holiday rules, and per-vehicle overrides. Recurring holidays
compare month/day only (year-independent); non-recurring holidays compare the
full date against an inclusive [Start, End] range.
*/
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// =============================================================================
// WEEKEND SURCHARGE
// =============================================================================

// WeekendConfig applies a percentage surcharge on the configured weekdays.
type WeekendConfig struct {
	Percent decimal.Decimal
	Days    []time.Weekday
}

// AppliesTo reports whether the date falls on a configured weekend day.
func (w *WeekendConfig) AppliesTo(day ledger.Date) bool {
	for _, wd := range w.Days {
		if day.Weekday() == wd {
			return true
		}
	}
	return false
}

// =============================================================================
// HOLIDAY RULES
// =============================================================================

// HolidayRule marks dates carrying a holiday surcharge. Either recurring
// (month/day every year) or a fixed inclusive date range.
type HolidayRule struct {
	ID               string
	Name             string
	Recurring        bool
	Date             ledger.Date // recurring: month/day anchor
	Start, End       ledger.Date // non-recurring: inclusive range
	SurchargePercent decimal.Decimal
	ExcludedVehicles []string
}

// Matches reports whether the rule covers the given day.
func (h HolidayRule) Matches(day ledger.Date) bool {
	if h.Recurring {
		return day.SameMonthDay(h.Date)
	}
	return day.AfterOrEqual(h.Start) && day.BeforeOrEqual(h.End)
}

// Excludes reports whether the vehicle is exempt from this holiday entirely.
func (h HolidayRule) Excludes(vehicleID string) bool {
	for _, v := range h.ExcludedVehicles {
		if v == vehicleID {
			return true
		}
	}
	return false
}

// =============================================================================
// VEHICLE OVERRIDES
// =============================================================================

type OverrideKind string

const (
	// OverrideFixedPrice replaces the day rate with a fixed price.
	OverrideFixedPrice OverrideKind = "fixed_price"
	// OverridePercent replaces the global surcharge percent.
	OverridePercent OverrideKind = "percent"
	// OverrideExcluded exempts the vehicle from the surcharge; the plain
	// base rate applies.
	OverrideExcluded OverrideKind = "excluded"
)

// VehicleOverride customizes how a surcharge applies to one vehicle.
// HolidayID links the override to a specific holiday rule; empty means it
// overrides the weekend surcharge.
type VehicleOverride struct {
	VehicleID  string
	HolidayID  string
	Kind       OverrideKind
	FixedPrice decimal.Decimal
	Percent    decimal.Decimal
}

func (o VehicleOverride) apply(base decimal.Decimal) decimal.Decimal {
	switch o.Kind {
	case OverrideFixedPrice:
		return o.FixedPrice
	case OverridePercent:
		return applyPercent(base, o.Percent)
	case OverrideExcluded:
		return base
	}
	return base
}

func findOverride(overrides []VehicleOverride, vehicleID, holidayID string) (VehicleOverride, bool) {
	for _, o := range overrides {
		if o.VehicleID == vehicleID && o.HolidayID == holidayID {
			return o, true
		}
	}
	return VehicleOverride{}, false
}
