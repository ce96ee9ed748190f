/*
usage.go - Prorated Usage Calculator

PURPOSE:
  Splits [enrollmentDate, endDate] into calendar-month segments and computes
  a prorated charge per segment using the daily-rate method:

    dailyRate = monthlyFee / daysInMonth   (full precision)
    amount    = dailyRate * daysUsed       (rounded to 2dp at emission)

  Day counts are inclusive on both ends, so a single-day stay produces one
  segment with daysUsed=1.

PURITY:
  ComputeUsage is a pure function. Identical inputs always yield the same
  segment list, which is what makes settlement recomputation idempotent.

ROUNDING:
  Each segment amount is rounded to 2 decimals before summing. Rounding the
  final total instead would drift from the per-segment figures shown to the
  student, so the per-segment behavior is kept deliberately.
*/
package billing

import "github.com/shopspring/decimal"

// ComputeUsage computes the per-month prorated usage breakdown for a stay
// over [enrollment, end] at the given monthly fee.
//
// Returns ErrInvalidDateRange (as *DateRangeError) if end precedes
// enrollment. enrollment == end yields a single one-day segment.
func ComputeUsage(enrollment, end Date, monthlyFee Money) ([]UsageCalculation, error) {
	if end.Before(enrollment) {
		return nil, &DateRangeError{Start: enrollment, End: end}
	}

	var segments []UsageCalculation
	for cursor := StartOfMonth(enrollment); cursor.BeforeOrEqual(end); cursor = cursor.AddMonths(1) {
		daysInMonth := DaysInMonth(cursor.Year(), cursor.Month())

		usageStart := cursor
		if SameMonth(cursor, enrollment) {
			usageStart = enrollment
		}
		usageEnd := EndOfMonth(cursor)
		if SameMonth(cursor, end) {
			usageEnd = end
		}

		daysUsed := InclusiveDays(usageStart, usageEnd)
		dailyRate := monthlyFee.Decimal().Div(decimal.NewFromInt(int64(daysInMonth)))
		amount := NewMoneyFromDecimal(dailyRate.Mul(decimal.NewFromInt(int64(daysUsed)))).Round2()

		segments = append(segments, UsageCalculation{
			Month:       cursor.MonthKey(),
			DaysInMonth: daysInMonth,
			DaysUsed:    daysUsed,
			DailyRate:   dailyRate,
			Amount:      amount,
			Period:      Period{Start: usageStart, End: usageEnd},
		})
	}
	return segments, nil
}

// TotalUsage sums segment amounts (each already rounded) and days used.
func TotalUsage(segments []UsageCalculation) (total Money, days int) {
	for _, s := range segments {
		total = total.Add(s.Amount)
		days += s.DaysUsed
	}
	return total, days
}
