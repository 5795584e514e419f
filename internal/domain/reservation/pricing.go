package reservation

import "fmt"

// DefaultServiceFeeCents is the flat booking fee added to every slot (INR 25.00).
const DefaultServiceFeeCents int64 = 2500

// PricingStrategy defines the interface for calculating reservation prices.
type PricingStrategy interface {
	// Calculate returns the total price in cents for the given parameters.
	Calculate(params PricingParams) (int64, error)
}

// PricingParams holds the inputs for price calculation.
type PricingParams struct {
	PricePerSlotCents int64
	TimeSlot          TimeSlot
	GuestCount        int
}

// StandardPricingStrategy charges the venue's slot price plus a flat service fee.
type StandardPricingStrategy struct {
	serviceFeeCents int64
}

// NewStandardPricingStrategy creates a StandardPricingStrategy. A negative fee
// falls back to DefaultServiceFeeCents.
func NewStandardPricingStrategy(serviceFeeCents int64) *StandardPricingStrategy {
	if serviceFeeCents < 0 {
		serviceFeeCents = DefaultServiceFeeCents
	}
	return &StandardPricingStrategy{serviceFeeCents: serviceFeeCents}
}

// Calculate computes pricePerSlot + service fee.
func (s *StandardPricingStrategy) Calculate(params PricingParams) (int64, error) {
	if params.PricePerSlotCents < 0 {
		return 0, fmt.Errorf("price per slot cannot be negative")
	}
	if !params.TimeSlot.IsValid() {
		return 0, fmt.Errorf("unknown time slot for pricing: %s", params.TimeSlot)
	}
	return params.PricePerSlotCents + s.serviceFeeCents, nil
}
