package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFullBreakdown(t *testing.T) {
	// Supplier price 100 with 10% discount, freight 20, 5% exclusive
	// IPI, DIFAL 18%, sales tax 10%, target margin 30%.
	in := PriceInputs{
		SupplierPrice:       100,
		SupplierDiscountPct: 10,
		Freight:             20,
		IPIMode:             IPIModePercentExclusive,
		IPIValue:            5,
		DIFALPct:            18,
		SalesTaxPct:         10,
		TargetMarginPct:     30,
	}

	b := Calculate(in, time.Now()).Rounded()

	assert.InDelta(t, 90.00, b.DiscountedBase, 0.001)
	assert.InDelta(t, 4.50, b.IPIAmount, 0.001)
	assert.InDelta(t, 105.50, b.DIFALBase, 0.001)
	assert.InDelta(t, 18.99, b.DIFALAmount, 0.001)
	assert.InDelta(t, 128.99, b.CostTotal, 0.001)
	assert.InDelta(t, 184.27, b.FinalPrice, 0.001)
	assert.InDelta(t, 18.43, b.TaxAmount, 0.001)
	assert.InDelta(t, 36.85, b.NetProfit, 0.001)
}

func TestCalculateIPIInclusiveExtraction(t *testing.T) {
	in := PriceInputs{
		SupplierPrice: 110,
		IPIMode:       IPIModePercentInclusive,
		IPIValue:      10,
	}

	b := Calculate(in, time.Now())

	// 110 carries the 10% inside: extracting leaves 100 of net base.
	assert.InDelta(t, 10.0, b.IPIAmount, 0.0001)
	assert.InDelta(t, 100.0, b.DIFALBase, 0.0001)
	// The cost never re-adds the extracted IPI.
	assert.InDelta(t, 110.0, b.CostTotal, 0.0001)
}

func TestCalculateIPIInclusiveIsDefault(t *testing.T) {
	explicit := Calculate(PriceInputs{SupplierPrice: 110, IPIMode: IPIModePercentInclusive, IPIValue: 10}, time.Now())
	implicit := Calculate(PriceInputs{SupplierPrice: 110, IPIValue: 10}, time.Now())
	assert.Equal(t, explicit, implicit)
}

func TestCalculateIPIExclusive(t *testing.T) {
	in := PriceInputs{
		SupplierPrice: 100,
		IPIMode:       IPIModePercentExclusive,
		IPIValue:      5,
	}

	b := Calculate(in, time.Now())

	assert.InDelta(t, 5.0, b.IPIAmount, 0.0001)
	assert.InDelta(t, 95.0, b.DIFALBase, 0.0001)
	assert.InDelta(t, 100.0, b.CostTotal, 0.0001)
}

func TestCalculateLegacyFixedIPIValue(t *testing.T) {
	current := Calculate(PriceInputs{SupplierPrice: 100, IPIMode: IPIModeFixed, IPIValue: 7}, time.Now())
	legacy := Calculate(PriceInputs{SupplierPrice: 100, IPIMode: IPIModeFixedLegacy, IPIValue: 7}, time.Now())
	assert.Equal(t, current, legacy)
}

func TestCalculateExplicitPriceWins(t *testing.T) {
	in := PriceInputs{
		SupplierPrice: 100,
		TargetProfit:  50,
		FinalPrice:    199.90,
	}

	b := Calculate(in, time.Now())
	assert.InDelta(t, 199.90, b.FinalPrice, 0.0001)
}

func TestCalculateTargetProfitBeatsMargin(t *testing.T) {
	in := PriceInputs{
		SupplierPrice:   100,
		SalesTaxPct:     10,
		TargetProfit:    40,
		TargetMarginPct: 30,
	}

	b := Calculate(in, time.Now())

	// (100 + 40) / (1 - 0.10)
	assert.InDelta(t, 140.0/0.9, b.FinalPrice, 0.0001)
}

func TestCalculateTargetMargin(t *testing.T) {
	in := PriceInputs{
		SupplierPrice:   100,
		TargetMarginPct: 30,
	}

	b := Calculate(in, time.Now())
	assert.InDelta(t, 100.0/0.7, b.FinalPrice, 0.0001)
}

func TestCalculateCostAsPriceFallback(t *testing.T) {
	in := PriceInputs{SupplierPrice: 100}
	b := Calculate(in, time.Now())
	assert.InDelta(t, 100.0, b.FinalPrice, 0.0001)
	assert.InDelta(t, 0.0, b.NetProfit, 0.0001)
}

func TestCalculateDIFALBaseFloorsAtZero(t *testing.T) {
	// A fixed IPI larger than the base would drive the DIFAL base
	// negative without the floor.
	in := PriceInputs{
		SupplierPrice: 10,
		IPIMode:       IPIModeFixed,
		IPIValue:      50,
		DIFALPct:      18,
	}

	b := Calculate(in, time.Now())
	assert.Equal(t, 0.0, b.DIFALBase)
	assert.Equal(t, 0.0, b.DIFALAmount)
}

func TestCalculateHundredPercentRatesStayFinite(t *testing.T) {
	for _, in := range []PriceInputs{
		{SupplierPrice: 100, SalesTaxPct: 100, TargetProfit: 10},
		{SupplierPrice: 100, TargetMarginPct: 100},
		{SupplierPrice: 100, IPIMode: IPIModePercentInclusive, IPIValue: -100},
	} {
		b := Calculate(in, time.Now())
		require.False(t, math.IsInf(b.FinalPrice, 0), "final price must stay finite")
		require.False(t, math.IsNaN(b.FinalPrice), "final price must stay a number")
	}
}

func TestCalculateIsPure(t *testing.T) {
	in := PriceInputs{
		SupplierPrice:       250,
		SupplierDiscountPct: 5,
		Freight:             12.5,
		IPIMode:             IPIModePercentExclusive,
		IPIValue:            6.5,
		DIFALPct:            12,
		SalesTaxPct:         8,
		TargetMarginPct:     25,
	}
	now := time.Now()

	first := Calculate(in, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Calculate(in, now))
	}
}

func TestCalculateMonotonicInSupplierPrice(t *testing.T) {
	base := PriceInputs{
		SupplierDiscountPct: 10,
		Freight:             15,
		DIFALPct:            18,
		SalesTaxPct:         10,
		TargetMarginPct:     30,
	}

	prev := -1.0
	for price := 10.0; price <= 1000; price += 10 {
		in := base
		in.SupplierPrice = price
		b := Calculate(in, time.Now())
		require.Greater(t, b.FinalPrice, prev, "suggested price must grow with supplier price")
		prev = b.FinalPrice
	}
}

func TestPromotionSubstitutesSupplierPrice(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)
	end := now.Add(24 * time.Hour)

	in := PriceInputs{
		SupplierPrice: 100,
		Promotion:     &Promotion{Active: true, Price: 80, StartDate: &start, EndDate: &end},
	}

	b := Calculate(in, now)
	assert.InDelta(t, 80.0, b.DiscountedBase, 0.0001)

	// Outside the window the regular supplier price is the cost base.
	b = Calculate(in, end.Add(time.Hour))
	assert.InDelta(t, 100.0, b.DiscountedBase, 0.0001)

	b = Calculate(in, start.Add(-time.Hour))
	assert.InDelta(t, 100.0, b.DiscountedBase, 0.0001)
}

func TestPromotionInactiveOrZeroPriceIgnored(t *testing.T) {
	in := PriceInputs{
		SupplierPrice: 100,
		Promotion:     &Promotion{Active: false, Price: 80},
	}
	b := Calculate(in, time.Now())
	assert.InDelta(t, 100.0, b.DiscountedBase, 0.0001)

	in.Promotion = &Promotion{Active: true, Price: 0}
	b = Calculate(in, time.Now())
	assert.InDelta(t, 100.0, b.DiscountedBase, 0.0001)
}

func TestPromotionOpenEndedBounds(t *testing.T) {
	promo := &Promotion{Active: true, Price: 80}
	assert.True(t, promo.ActiveAt(time.Now()))

	start := time.Now().Add(-time.Hour)
	promo.StartDate = &start
	assert.True(t, promo.ActiveAt(time.Now()))
}

func TestRounded(t *testing.T) {
	b := Breakdown{FinalPrice: 184.2714285, TaxAmount: 18.42714285}
	r := b.Rounded()
	assert.Equal(t, 184.27, r.FinalPrice)
	assert.Equal(t, 18.43, r.TaxAmount)
	// The original keeps full precision.
	assert.Equal(t, 184.2714285, b.FinalPrice)
}
