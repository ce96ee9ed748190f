/*
fees.go - Fee Configuration Resolver

PURPOSE:
  Aggregates a student's active fee components into one monthly fee with an
  itemized breakdown. This total is the canonical "monthly fee" consumed by
  the usage calculator and the settlement engine.

NO CACHING:
  Every caller re-resolves the configuration, so fee changes (including the
  re-dating a bed switch performs) apply immediately to months that have
  not been settled yet.
*/
package billing

import (
	"context"
	"fmt"
)

// FeeResolver aggregates active fee components into a monthly fee.
type FeeResolver struct {
	store FeeStore
}

func NewFeeResolver(store FeeStore) *FeeResolver {
	return &FeeResolver{store: store}
}

// ResolveMonthlyFee returns the sum of all currently-active fee components
// plus an itemized breakdown.
//
// Fails with ErrNoActiveConfiguration if the student has no active
// component, and ErrInvalidConfiguration if the aggregated total is <= 0.
func (r *FeeResolver) ResolveMonthlyFee(ctx context.Context, studentID StudentID) (*MonthlyFee, error) {
	components, err := r.store.ListActiveFeeComponents(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("listing fee components for %s: %w", studentID, err)
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("student %s: %w", studentID, ErrNoActiveConfiguration)
	}

	fee := &MonthlyFee{StudentID: studentID}
	for _, c := range components {
		fee.Total = fee.Total.Add(c.Amount)
		fee.Items = append(fee.Items, FeeLineItem{
			Type:        c.FeeType,
			Description: describeComponent(c),
			Amount:      c.Amount,
		})
	}

	if !fee.Total.IsPositive() {
		return nil, &ConfigurationError{StudentID: studentID, Total: fee.Total}
	}
	return fee, nil
}

func describeComponent(c FeeComponent) string {
	if c.Notes != "" {
		return c.Notes
	}
	switch c.FeeType {
	case FeeBaseMonthly:
		return "Base monthly rent"
	case FeeLaundry:
		return "Laundry service"
	case FeeFood:
		return "Food / mess"
	case FeeUtilities:
		return "Utilities"
	case FeeMaintenance:
		return "Maintenance"
	case FeeAdditional:
		return "Additional charge"
	default:
		return string(c.FeeType)
	}
}
