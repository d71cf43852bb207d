package pricing

import (
	"math"
	"time"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// minDivisor keeps the price-suggestion and IPI-extraction divisions
// away from zero when a rate reaches 100%. The legacy form never
// guarded this; clamping yields a huge but finite price instead of
// Inf/NaN propagating into the summary fields.
const minDivisor = 1e-6

func clampDivisor(d float64) float64 {
	if d < minDivisor {
		return minDivisor
	}
	return d
}

// Calculate derives the full pricing breakdown from the input snapshot.
// It is a pure function: safe to call on every keystroke, identical
// inputs produce identical outputs. The step order is load-bearing for
// numeric reproducibility and must not be rearranged.
func Calculate(in PriceInputs, now time.Time) Breakdown {
	supplierPrice := in.SupplierPrice
	if in.Promotion.ActiveAt(now) {
		supplierPrice = in.Promotion.Price
	}

	// 1. Supplier discount.
	base := supplierPrice * (1 - in.SupplierDiscountPct/100)

	// 2. IPI.
	var ipiAmount float64
	switch in.IPIMode {
	case IPIModePercentExclusive:
		ipiAmount = base * in.IPIValue / 100
	case IPIModeFixed, IPIModeFixedLegacy:
		ipiAmount = in.IPIValue
	default:
		// Percent-inclusive is the legacy form default.
		baseWithoutIPI := base / clampDivisor(1+in.IPIValue/100)
		ipiAmount = base - baseWithoutIPI
	}

	// 3. DIFAL on the base net of IPI plus freight, floored at zero.
	difalBase := base - ipiAmount + in.Freight
	if difalBase < 0 {
		difalBase = 0
	}
	difalAmount := difalBase * in.DIFALPct / 100

	// 4. Cash cost. IPI is not re-added: in the inclusive mode it is
	// already inside base, and the other modes follow the same rule.
	costTotal := base + difalAmount + in.Freight

	// 5. Suggested price, unless an explicit positive price was entered.
	// Precedence: target profit > target margin > cost-as-price.
	finalPrice := in.FinalPrice
	if !(finalPrice > 0) {
		switch {
		case in.TargetProfit > 0:
			finalPrice = (costTotal + in.TargetProfit) / clampDivisor(1-in.SalesTaxPct/100)
		case in.TargetMarginPct > 0:
			finalPrice = costTotal / clampDivisor(1-in.TargetMarginPct/100)
		default:
			finalPrice = costTotal
		}
	}

	// 6. Sales tax and net profit on the final price.
	taxAmount := finalPrice * in.SalesTaxPct / 100
	netProfit := finalPrice - costTotal - taxAmount

	return Breakdown{
		DiscountedBase: base,
		IPIAmount:      ipiAmount,
		DIFALBase:      difalBase,
		DIFALAmount:    difalAmount,
		CostTotal:      costTotal,
		FinalPrice:     finalPrice,
		TaxAmount:      taxAmount,
		NetProfit:      netProfit,
	}
}

// Rounded returns a copy with all amounts rounded to two decimals, for
// responses and persistence.
func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		DiscountedBase: round2(b.DiscountedBase),
		IPIAmount:      round2(b.IPIAmount),
		DIFALBase:      round2(b.DIFALBase),
		DIFALAmount:    round2(b.DIFALAmount),
		CostTotal:      round2(b.CostTotal),
		FinalPrice:     round2(b.FinalPrice),
		TaxAmount:      round2(b.TaxAmount),
		NetProfit:      round2(b.NetProfit),
	}
}
