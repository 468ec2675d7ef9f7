package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CortekUK/drive-247-sub010/ledger"
	"github.com/CortekUK/drive-247-sub010/pricing"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func rate(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func money(s string) decimal.Decimal { return *rate(s) }

func weekendSatSun(percent string) *pricing.WeekendConfig {
	return &pricing.WeekendConfig{
		Percent: money(percent),
		Days:    []time.Weekday{time.Saturday, time.Sunday},
	}
}

// =============================================================================
// TIER SELECTION
// =============================================================================

func TestCalculate_DailyTier_WithWeekendSurcharge(t *testing.T) {
	// GIVEN: Daily rate 100, weekend +20%, a Thu-Sun rental (3 days: Thu,
	//        Fri, Sat)
	// WHEN: The quote is calculated
	// THEN: Two base days at 100 plus one Saturday at 120 = 320, daily tier,
	//       per-day breakdown present

	// 2026-03-05 is a Thursday.
	quote := pricing.Calculate(pricing.Request{
		Pickup:  ledger.NewDate(2026, 3, 5),
		Dropoff: ledger.NewDate(2026, 3, 8),
		Rates:   pricing.RateCard{Daily: rate("100")},
		Weekend: weekendSatSun("20"),
	})

	assert.Equal(t, pricing.TierDaily, quote.Tier)
	assert.Equal(t, 3, quote.Days)
	assert.True(t, quote.Total.Equal(money("320")), "got %s", quote.Total)

	require.Len(t, quote.Breakdown, 3)
	assert.Equal(t, "base", quote.Breakdown[0].Basis)
	assert.Equal(t, "base", quote.Breakdown[1].Basis)
	assert.Equal(t, "weekend", quote.Breakdown[2].Basis)
	assert.True(t, quote.Breakdown[2].Rate.Equal(money("120")))
}

func TestCalculate_WeeklyTier_ProRated(t *testing.T) {
	// GIVEN: Weekly rate 600 and a 10-day rental
	// WHEN: The quote is calculated
	// THEN: 600 * 10 / 7 = 857.14, weekly tier, no per-day breakdown

	quote := pricing.Calculate(pricing.Request{
		Pickup:  ledger.NewDate(2026, 3, 2),
		Dropoff: ledger.NewDate(2026, 3, 12),
		Rates:   pricing.RateCard{Daily: rate("100"), Weekly: rate("600")},
		Weekend: weekendSatSun("20"),
	})

	assert.Equal(t, pricing.TierWeekly, quote.Tier)
	assert.Equal(t, 10, quote.Days)
	assert.True(t, quote.Total.Equal(money("857.14")), "got %s", quote.Total)
	assert.Empty(t, quote.Breakdown, "weekly tier has no day breakdown")
}

func TestCalculate_MonthlyTier_ProRated(t *testing.T) {
	// GIVEN: Monthly rate 1500 and a 45-day rental
	// WHEN: The quote is calculated
	// THEN: 1500 * 45 / 30 = 2250, monthly tier

	quote := pricing.Calculate(pricing.Request{
		Pickup:  ledger.NewDate(2026, 3, 1),
		Dropoff: ledger.NewDate(2026, 4, 15),
		Rates:   pricing.RateCard{Daily: rate("100"), Weekly: rate("600"), Monthly: rate("1500")},
	})

	assert.Equal(t, pricing.TierMonthly, quote.Tier)
	assert.Equal(t, 45, quote.Days)
	assert.True(t, quote.Total.Equal(money("2250")), "got %s", quote.Total)
}

func TestCalculate_TierFallback_WhenPreferredRateMissing(t *testing.T) {
	// GIVEN: A 10-day rental but no weekly rate configured
	// WHEN: The quote is calculated
	// THEN: Falls back to the daily tier

	quote := pricing.Calculate(pricing.Request{
		Pickup:  ledger.NewDate(2026, 3, 2),
		Dropoff: ledger.NewDate(2026, 3, 12),
		Rates:   pricing.RateCard{Daily: rate("100")},
	})

	assert.Equal(t, pricing.TierDaily, quote.Tier)
	assert.True(t, quote.Total.Equal(money("1000")))
}

func TestCalculate_NoRates_TierNone(t *testing.T) {
	quote := pricing.Calculate(pricing.Request{
		Pickup:  ledger.NewDate(2026, 3, 2),
		Dropoff: ledger.NewDate(2026, 3, 5),
	})

	assert.Equal(t, pricing.TierNone, quote.Tier)
	assert.True(t, quote.Total.IsZero())
}

func TestCalculate_SameDay_MinimumOneDay(t *testing.T) {
	// GIVEN: Pickup and dropoff on the same date
	// WHEN: The quote is calculated
	// THEN: One day is charged, never zero

	day := ledger.NewDate(2026, 3, 2)
	quote := pricing.Calculate(pricing.Request{
		Pickup:  day,
		Dropoff: day,
		Rates:   pricing.RateCard{Daily: rate("100")},
	})

	assert.Equal(t, 1, quote.Days)
	assert.True(t, quote.Total.Equal(money("100")))
}

// =============================================================================
// HOLIDAY RULES
// =============================================================================

func TestCalculate_HolidayBeatsWeekend(t *testing.T) {
	// GIVEN: A Saturday that is also a holiday (+50%) with weekend +20%
	// WHEN: The quote is calculated
	// THEN: The holiday surcharge wins; basis names the holiday

	// 2026-03-07 is a Saturday.
	quote := pricing.Calculate(pricing.Request{
		Pickup:  ledger.NewDate(2026, 3, 7),
		Dropoff: ledger.NewDate(2026, 3, 8),
		Rates:   pricing.RateCard{Daily: rate("100")},
		Weekend: weekendSatSun("20"),
		Holidays: []pricing.HolidayRule{{
			ID:               "hol-1",
			Name:             "Festival",
			Start:            ledger.NewDate(2026, 3, 7),
			End:              ledger.NewDate(2026, 3, 7),
			SurchargePercent: money("50"),
		}},
	})

	require.Len(t, quote.Breakdown, 1)
	assert.Equal(t, "holiday:Festival", quote.Breakdown[0].Basis)
	assert.True(t, quote.Total.Equal(money("150")), "got %s", quote.Total)
}

func TestCalculate_RecurringHoliday_MatchesAnyYear(t *testing.T) {
	// GIVEN: A recurring Dec 25 holiday anchored in a past year
	// WHEN: A rental covers Dec 25 of a later year
	// THEN: The surcharge still applies

	quote := pricing.Calculate(pricing.Request{
		Pickup:  ledger.NewDate(2026, 12, 25),
		Dropoff: ledger.NewDate(2026, 12, 26),
		Rates:   pricing.RateCard{Daily: rate("100")},
		Holidays: []pricing.HolidayRule{{
			ID:               "xmas",
			Name:             "Christmas",
			Recurring:        true,
			Date:             ledger.NewDate(2020, 12, 25),
			SurchargePercent: money("30"),
		}},
	})

	require.Len(t, quote.Breakdown, 1)
	assert.Equal(t, "holiday:Christmas", quote.Breakdown[0].Basis)
	assert.True(t, quote.Total.Equal(money("130")))
}

func TestCalculate_FirstMatchingHolidayWins(t *testing.T) {
	// GIVEN: Two holiday rules matching the same day
	// WHEN: The quote is calculated
	// THEN: Only the first configured rule applies

	day := ledger.NewDate(2026, 3, 10)
	quote := pricing.Calculate(pricing.Request{
		Pickup:  day,
		Dropoff: day.AddDays(1),
		Rates:   pricing.RateCard{Daily: rate("100")},
		Holidays: []pricing.HolidayRule{
			{ID: "a", Name: "First", Start: day, End: day, SurchargePercent: money("10")},
			{ID: "b", Name: "Second", Start: day, End: day, SurchargePercent: money("90")},
		},
	})

	require.Len(t, quote.Breakdown, 1)
	assert.Equal(t, "holiday:First", quote.Breakdown[0].Basis)
	assert.True(t, quote.Total.Equal(money("110")))
}

func TestCalculate_HolidayExcludedVehicle_BaseRate(t *testing.T) {
	// GIVEN: A holiday rule that excludes the quoted vehicle
	// WHEN: The quote is calculated
	// THEN: The vehicle pays the plain base rate

	day := ledger.NewDate(2026, 3, 10)
	quote := pricing.Calculate(pricing.Request{
		Pickup:    day,
		Dropoff:   day.AddDays(1),
		VehicleID: "veh-lux",
		Rates:     pricing.RateCard{Daily: rate("100")},
		Holidays: []pricing.HolidayRule{{
			ID:               "a",
			Name:             "Festival",
			Start:            day,
			End:              day,
			SurchargePercent: money("50"),
			ExcludedVehicles: []string{"veh-lux"},
		}},
	})

	require.Len(t, quote.Breakdown, 1)
	assert.Equal(t, "base", quote.Breakdown[0].Basis)
	assert.True(t, quote.Total.Equal(money("100")))
}

// =============================================================================
// VEHICLE OVERRIDES
// =============================================================================

func TestCalculate_HolidayFixedPriceOverride(t *testing.T) {
	// GIVEN: A holiday +50% but a fixed-price 80 override for this vehicle
	// WHEN: The quote is calculated
	// THEN: The day costs exactly 80

	day := ledger.NewDate(2026, 3, 10)
	quote := pricing.Calculate(pricing.Request{
		Pickup:    day,
		Dropoff:   day.AddDays(1),
		VehicleID: "veh-1",
		Rates:     pricing.RateCard{Daily: rate("100")},
		Holidays: []pricing.HolidayRule{{
			ID: "hol-1", Name: "Festival", Start: day, End: day, SurchargePercent: money("50"),
		}},
		Overrides: []pricing.VehicleOverride{{
			VehicleID:  "veh-1",
			HolidayID:  "hol-1",
			Kind:       pricing.OverrideFixedPrice,
			FixedPrice: money("80"),
		}},
	})

	require.Len(t, quote.Breakdown, 1)
	assert.True(t, quote.Total.Equal(money("80")), "got %s", quote.Total)
	assert.Equal(t, "holiday:Festival", quote.Breakdown[0].Basis)
}

func TestCalculate_WeekendPercentOverride(t *testing.T) {
	// GIVEN: Weekend +20% globally but +5% for this vehicle
	// WHEN: A Saturday is quoted
	// THEN: The vehicle-specific percent applies

	// 2026-03-07 is a Saturday.
	quote := pricing.Calculate(pricing.Request{
		Pickup:    ledger.NewDate(2026, 3, 7),
		Dropoff:   ledger.NewDate(2026, 3, 8),
		VehicleID: "veh-1",
		Rates:     pricing.RateCard{Daily: rate("100")},
		Weekend:   weekendSatSun("20"),
		Overrides: []pricing.VehicleOverride{{
			VehicleID: "veh-1",
			Kind:      pricing.OverridePercent,
			Percent:   money("5"),
		}},
	})

	require.Len(t, quote.Breakdown, 1)
	assert.True(t, quote.Total.Equal(money("105")))
}

func TestCalculate_WeekendExcludedOverride(t *testing.T) {
	// GIVEN: Weekend +20% but this vehicle is excluded from the surcharge
	// WHEN: A Saturday is quoted
	// THEN: Base rate applies

	quote := pricing.Calculate(pricing.Request{
		Pickup:    ledger.NewDate(2026, 3, 7),
		Dropoff:   ledger.NewDate(2026, 3, 8),
		VehicleID: "veh-1",
		Rates:     pricing.RateCard{Daily: rate("100")},
		Weekend:   weekendSatSun("20"),
		Overrides: []pricing.VehicleOverride{{
			VehicleID: "veh-1",
			Kind:      pricing.OverrideExcluded,
		}},
	})

	require.Len(t, quote.Breakdown, 1)
	assert.True(t, quote.Total.Equal(money("100")))
}

// =============================================================================
// ROUNDING
// =============================================================================

func TestCalculate_DailyRounding_PerDayThenTotal(t *testing.T) {
	// GIVEN: A rate whose surcharge produces sub-cent values
	// WHEN: Several surcharged days are summed
	// THEN: Each day rounds to cents before the total does

	// 33.33 + 15% = 38.3295 -> 38.33 per day; 3 days = 114.99
	day := ledger.NewDate(2026, 3, 10)
	quote := pricing.Calculate(pricing.Request{
		Pickup:  day,
		Dropoff: day.AddDays(3),
		Rates:   pricing.RateCard{Daily: rate("33.33")},
		Holidays: []pricing.HolidayRule{{
			ID: "h", Name: "H", Start: day, End: day.AddDays(2), SurchargePercent: money("15"),
		}},
	})

	require.Len(t, quote.Breakdown, 3)
	for _, dc := range quote.Breakdown {
		assert.True(t, dc.Rate.Equal(money("38.33")), "got %s", dc.Rate)
	}
	assert.True(t, quote.Total.Equal(money("114.99")), "got %s", quote.Total)
}
