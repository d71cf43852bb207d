package pricing

import "time"

// IPIMode selects how the configured IPI value is interpreted. The wire
// values match the legacy form options.
type IPIMode string

const (
	// IPIModePercentInclusive treats the tax as already embedded in the
	// discounted base and extracts it.
	IPIModePercentInclusive IPIMode = "%_dentro"
	// IPIModePercentExclusive applies the rate on top of the base.
	IPIModePercentExclusive IPIMode = "%"
	// IPIModeFixed treats the value as an absolute currency amount.
	IPIModeFixed IPIMode = "fixo"
	// IPIModeFixedLegacy is the currency-amount value the old form posts.
	IPIModeFixedLegacy IPIMode = "R$"
)

// Promotion substitutes the supplier price as cost base while active.
// Open-ended bounds are unbounded. The supplier price itself is never
// mutated.
type Promotion struct {
	Active    bool       `json:"ativa"`
	Price     float64    `json:"preco"`
	StartDate *time.Time `json:"data_inicio,omitempty"`
	EndDate   *time.Time `json:"data_fim,omitempty"`
}

// ActiveAt reports whether the promotion price should drive the cost
// base at the given instant.
func (p *Promotion) ActiveAt(now time.Time) bool {
	if p == nil || !p.Active || p.Price <= 0 {
		return false
	}
	if p.StartDate != nil && now.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && now.After(*p.EndDate) {
		return false
	}
	return true
}

// PriceInputs is the ephemeral snapshot the engine computes from. It is
// recomputed on every change; the engine never mutates it.
type PriceInputs struct {
	SupplierPrice       float64    `json:"preco_fornecedor" validate:"gte=0"`
	SupplierDiscountPct float64    `json:"desconto" validate:"gte=0,lte=100"`
	Freight             float64    `json:"frete" validate:"gte=0"`
	IPIMode             IPIMode    `json:"ipi_tipo" validate:"omitempty,oneof=%_dentro % fixo R$"`
	IPIValue            float64    `json:"ipi" validate:"gte=0"`
	DIFALPct            float64    `json:"difal" validate:"gte=0,lte=100"`
	SalesTaxPct         float64    `json:"imposto_venda" validate:"gte=0,lte=100"`
	TargetProfit        float64    `json:"lucro_alvo" validate:"gte=0"`
	TargetMarginPct     float64    `json:"margem" validate:"gte=0,lte=100"`
	FinalPrice          float64    `json:"preco_final" validate:"gte=0"`
	Promotion           *Promotion `json:"promocao,omitempty"`
}

// Breakdown is the derived pricing result. Values carry full float
// precision; rounding to two decimals happens only at the wire and
// display boundaries.
type Breakdown struct {
	DiscountedBase float64 `json:"base"`
	IPIAmount      float64 `json:"valor_ipi"`
	DIFALBase      float64 `json:"base_difal"`
	DIFALAmount    float64 `json:"valor_difal"`
	CostTotal      float64 `json:"custo_total"`
	FinalPrice     float64 `json:"preco_final"`
	TaxAmount      float64 `json:"valor_imposto"`
	NetProfit      float64 `json:"lucro_liquido"`
}

// ProductPricing is the persisted pricing profile of a product.
// SalePrice is the computed result of the last save; it lives apart
// from Inputs.FinalPrice, which holds only what the operator typed, so
// a round-tripped profile keeps its target-profit/target-margin
// precedence instead of pinning the previously derived price.
type ProductPricing struct {
	ProductID int64       `json:"produto_id"`
	Inputs    PriceInputs `json:"inputs"`
	SalePrice float64     `json:"preco_venda"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// HistoryEntry records a sale-price change for a product.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"produto_id"`
	OldPrice   float64   `json:"preco_anterior"`
	NewPrice   float64   `json:"preco_novo"`
	ChangedBy  int64     `json:"alterado_por"`
	RecordedAt time.Time `json:"registrado_em"`
}
