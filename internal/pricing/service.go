package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/m4-gestao/m4-pdv/internal/observability"
)

// Service provides pricing computations and profile persistence.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs a pricing service.
func NewService(repo Repository, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics, now: time.Now}
}

// Quote computes a breakdown from an input snapshot without touching
// any product record.
func (s *Service) Quote(in PriceInputs) Breakdown {
	if s.metrics != nil {
		s.metrics.PricingComputed.Inc()
	}
	return Calculate(in, s.now())
}

// GetProductPricing loads a product's pricing profile together with the
// breakdown its current inputs produce.
func (s *Service) GetProductPricing(ctx context.Context, productID int64) (*ProductPricing, Breakdown, error) {
	p, err := s.repo.GetProductPricing(ctx, productID)
	if err != nil {
		return nil, Breakdown{}, fmt.Errorf("get product pricing: %w", err)
	}
	return p, Calculate(p.Inputs, s.now()), nil
}

// UpdateProductPricing recomputes the breakdown from the submitted
// inputs, persists the profile with the resulting sale price, and
// records a history entry when the price changed.
func (s *Service) UpdateProductPricing(ctx context.Context, productID int64, in PriceInputs, changedBy int64) (Breakdown, error) {
	existing, err := s.repo.GetProductPricing(ctx, productID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("get product pricing: %w", err)
	}

	breakdown := Calculate(in, s.now()).Rounded()

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateProductPricing(ctx, productID, in, breakdown.FinalPrice); err != nil {
			return fmt.Errorf("update pricing: %w", err)
		}
		if existing.SalePrice != breakdown.FinalPrice {
			_, err := repo.InsertHistory(ctx, HistoryEntry{
				ProductID: productID,
				OldPrice:  existing.SalePrice,
				NewPrice:  breakdown.FinalPrice,
				ChangedBy: changedBy,
			})
			if err != nil {
				return fmt.Errorf("insert price history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Breakdown{}, err
	}
	return breakdown, nil
}

// History lists recent sale-price changes for a product.
func (s *Service) History(ctx context.Context, productID int64, limit int) ([]HistoryEntry, error) {
	return s.repo.ListHistory(ctx, productID, limit)
}
