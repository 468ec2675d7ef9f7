/*
Package pricing computes rental charges for a date range.

PURPOSE:
  Pure, deterministic price calculation. Given a pickup/drop-off range, a
  rate card, and optional surcharge configuration, produce the total charge,
  the day count, the tier used, and (for the daily tier) a day-by-day
  breakdown for itemized display and audit. No I/O, no randomness, no clock:
  identical inputs always produce identical quotes.

TIER SELECTION:
  days = whole days between pickup (inclusive) and drop-off (exclusive),
  minimum 1.
    days > 30 and a monthly rate exists  -> monthly_rate * days/30
    7 <= days <= 30 and a weekly rate    -> weekly_rate * days/7
    otherwise, daily rate                -> per-calendar-day sum
  Only the daily tier applies surcharges ("dynamic pricing"); the weekly and
  monthly formulas ignore weekends and holidays entirely.

FALLBACK:
  When the preferred tier's rate is missing, the first present rate in the
  order daily -> weekly -> monthly wins, with that tier's formula. With no
  rates at all the quote is zero.

PER-DAY RESOLUTION (daily tier only), in priority order:
  1. A matching holiday rule - unless the vehicle is in that holiday's
     exclusion list. A vehicle-specific holiday override (fixed price,
     custom percent, or excluded-from-surcharge) beats the holiday's global
     surcharge percent.
  2. A weekend day per the weekend config - vehicle weekend override beats
     the global percent.
  3. The plain base daily rate.

ROUNDING:
  Every effective day rate is rounded to 2 places before summing; the total
  is rounded again at the end. Weekly/monthly totals round once.
*/
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// =============================================================================
// QUOTE TYPES
// =============================================================================

type Tier string

const (
	TierDaily   Tier = "daily"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
	TierNone    Tier = "none" // no rates configured
)

// RateCard holds the vehicle's rate triple. Nil means the tier has no rate.
type RateCard struct {
	Daily   *decimal.Decimal
	Weekly  *decimal.Decimal
	Monthly *decimal.Decimal
}

// Request is the full input to a quote. Pickup is inclusive, Dropoff
// exclusive; both are calendar dates.
type Request struct {
	Pickup    ledger.Date
	Dropoff   ledger.Date
	VehicleID string
	Rates     RateCard
	Weekend   *WeekendConfig
	Holidays  []HolidayRule // ordered; first match wins
	Overrides []VehicleOverride
}

// DayCharge is one row of the daily-tier breakdown.
type DayCharge struct {
	Day   ledger.Date
	Rate  decimal.Decimal
	Basis string // "base", "weekend", or "holiday:<name>"
}

// Quote is the calculator's output.
type Quote struct {
	Total     decimal.Decimal
	Days      int
	Tier      Tier
	Breakdown []DayCharge // daily tier only
}

// =============================================================================
// CALCULATOR
// =============================================================================

var (
	seven  = decimal.NewFromInt(7)
	thirty = decimal.NewFromInt(30)
)

// Calculate produces a quote for the request.
func Calculate(req Request) Quote {
	days := req.Pickup.DaysUntil(req.Dropoff)
	if days < 1 {
		days = 1
	}

	tier := selectTier(days, req.Rates)

	switch tier {
	case TierMonthly:
		total := req.Rates.Monthly.Mul(decimal.NewFromInt(int64(days))).Div(thirty)
		return Quote{Total: ledger.Round2(total), Days: days, Tier: TierMonthly}

	case TierWeekly:
		total := req.Rates.Weekly.Mul(decimal.NewFromInt(int64(days))).Div(seven)
		return Quote{Total: ledger.Round2(total), Days: days, Tier: TierWeekly}

	case TierDaily:
		return calculateDaily(req, days)

	default:
		return Quote{Total: decimal.Zero, Days: days, Tier: TierNone}
	}
}

// selectTier picks the preferred tier for the day count, falling back through
// daily -> weekly -> monthly when the preferred rate is missing.
func selectTier(days int, rates RateCard) Tier {
	switch {
	case days > 30 && rates.Monthly != nil:
		return TierMonthly
	case days >= 7 && days <= 30 && rates.Weekly != nil:
		return TierWeekly
	}
	for _, t := range []Tier{TierDaily, TierWeekly, TierMonthly} {
		switch t {
		case TierDaily:
			if rates.Daily != nil {
				return TierDaily
			}
		case TierWeekly:
			if rates.Weekly != nil {
				return TierWeekly
			}
		case TierMonthly:
			if rates.Monthly != nil {
				return TierMonthly
			}
		}
	}
	return TierNone
}

// calculateDaily walks each calendar day, resolves its effective rate, and
// sums. This is the only tier with surcharge logic.
func calculateDaily(req Request, days int) Quote {
	base := *req.Rates.Daily
	quote := Quote{Days: days, Tier: TierDaily, Total: decimal.Zero}

	day := req.Pickup
	for i := 0; i < days; i++ {
		rate, basis := resolveDayRate(req, day, base)
		rate = ledger.Round2(rate)
		quote.Breakdown = append(quote.Breakdown, DayCharge{Day: day, Rate: rate, Basis: basis})
		quote.Total = quote.Total.Add(rate)
		day = day.AddDays(1)
	}

	quote.Total = ledger.Round2(quote.Total)
	return quote
}

// resolveDayRate applies the priority chain for one calendar day.
func resolveDayRate(req Request, day ledger.Date, base decimal.Decimal) (decimal.Decimal, string) {
	for _, h := range req.Holidays {
		if !h.Matches(day) || h.Excludes(req.VehicleID) {
			continue
		}
		basis := "holiday:" + h.Name
		if ov, ok := findOverride(req.Overrides, req.VehicleID, h.ID); ok {
			return ov.apply(base), basis
		}
		return applyPercent(base, h.SurchargePercent), basis
	}

	if req.Weekend != nil && req.Weekend.AppliesTo(day) {
		if ov, ok := findOverride(req.Overrides, req.VehicleID, ""); ok {
			return ov.apply(base), "weekend"
		}
		return applyPercent(base, req.Weekend.Percent), "weekend"
	}

	return base, "base"
}

func applyPercent(base, percent decimal.Decimal) decimal.Decimal {
	return base.Add(base.Mul(percent).Div(decimal.NewFromInt(100)))
}
