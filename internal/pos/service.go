package pos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m4-gestao/m4-pdv/internal/observability"
	"github.com/m4-gestao/m4-pdv/internal/shared"
)

const (
	clientQueryMinLen  = 3
	productQueryMinLen = 2
	clientSearchLimit  = 10
	productSearchLimit = 15
)

var (
	// ErrInvalidPayment flags an unknown payment method.
	ErrInvalidPayment = errors.New("metodo de pagamento invalido")
	// ErrInsufficientReceived flags a received amount below the total.
	ErrInsufficientReceived = errors.New("valor recebido insuficiente")
	// ErrSaleAlreadyCancelled flags a repeated cancellation.
	ErrSaleAlreadyCancelled = errors.New("venda ja cancelada")
	// ErrSerialUnavailable flags a serial that is not available in stock.
	ErrSerialUnavailable = errors.New("serial indisponivel no estoque")
	// ErrWeaponCaliberMismatch flags an ammunition link to a weapon of a
	// different caliber.
	ErrWeaponCaliberMismatch = errors.New("arma vinculada nao corresponde ao calibre da municao")
	// ErrWeaponNotOwned flags a weapon link that belongs to another client.
	ErrWeaponNotOwned = errors.New("arma vinculada nao pertence ao cliente")
)

// IdempotencyGuard protects finalize against duplicate submissions.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TaskEnqueuer hands finished sales to the background worker.
type TaskEnqueuer interface {
	EnqueueSalePostProcess(ctx context.Context, saleID int64) error
}

// Service owns the vendas business logic: search, authoritative cart
// item validation, sale finalization and cancellation.
type Service struct {
	repo     Repository
	cache    *SearchCache
	idem     IdempotencyGuard
	audit    AuditRecorder
	enqueuer TaskEnqueuer
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a vendas service. cache, idem, audit and
// enqueuer may be nil; the corresponding behavior is skipped.
func NewService(repo Repository, cache *SearchCache, idem IdempotencyGuard, audit AuditRecorder, enqueuer TaskEnqueuer, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		idem:     idem,
		audit:    audit,
		enqueuer: enqueuer,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// SearchClients returns the autocomplete matches for a query. Queries
// below the minimum length return an empty result without touching the
// database, matching the front-end contract.
func (s *Service) SearchClients(ctx context.Context, query string) ([]ClientSummary, error) {
	if len(query) < clientQueryMinLen {
		return []ClientSummary{}, nil
	}

	key := searchKey("clientes", query)
	var cached []ClientSummary
	if s.cache.get(ctx, key, &cached) {
		return cached, nil
	}

	clients, err := s.repo.SearchClients(ctx, query, clientSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	if clients == nil {
		clients = []ClientSummary{}
	}
	s.cache.set(ctx, key, clients)
	return clients, nil
}

// SearchProducts returns the search matches for a query.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]ProductSummary, error) {
	if len(query) < productQueryMinLen {
		return []ProductSummary{}, nil
	}

	key := searchKey("produtos", query)
	var cached []ProductSummary
	if s.cache.get(ctx, key, &cached) {
		return cached, nil
	}

	products, err := s.repo.SearchProducts(ctx, query, productSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if products == nil {
		products = []ProductSummary{}
	}
	s.cache.set(ctx, key, products)
	return products, nil
}

// ListClientWeapons lists a client's registered weapons, optionally
// filtered by caliber. Used to link an ammunition sale to a CRAF.
func (s *Service) ListClientWeapons(ctx context.Context, clientID int64, caliber string) ([]ClientWeapon, error) {
	weapons, err := s.repo.ListClientWeapons(ctx, clientID, caliber)
	if err != nil {
		return nil, fmt.Errorf("list client weapons: %w", err)
	}
	if weapons == nil {
		weapons = []ClientWeapon{}
	}
	return weapons, nil
}

// ValidateItem performs the authoritative validation of a staged cart
// item and returns the finalized line. The cart never diverges from
// server-side inventory truth for controlled goods: the item enters the
// cart only after this passes.
func (s *Service) ValidateItem(ctx context.Context, req AddItemRequest) (*CartItem, error) {
	if req.ClientID <= 0 {
		return nil, shared.ErrNoClient
	}
	if req.Quantity < 1 || !(req.UnitPrice > 0) {
		return nil, fmt.Errorf("%w: quantidade e preco devem ser positivos", ErrInvalidItem)
	}

	if _, err := s.repo.GetClient(ctx, req.ClientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.ErrNoClient
		}
		return nil, fmt.Errorf("get client: %w", err)
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.rejectItem("produto_inexistente")
			return nil, fmt.Errorf("%w: produto nao encontrado ou inativo", ErrNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	if req.Quantity > product.StockAvailable {
		s.rejectItem("estoque")
		return nil, fmt.Errorf("%w: disponivel %d, necessario %d",
			shared.ErrInsufficientStock, product.StockAvailable, req.Quantity)
	}

	item := CartItem{
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		TotalItem:      shared.Round2(float64(req.Quantity) * req.UnitPrice),
		IsControlled:   product.IsControlled,
		Kind:           product.Kind,
		StockAvailable: product.StockAvailable,
		SerialLot:      req.SerialLot,
		CRAF:           req.CRAF,
		ArmaClienteID:  req.ArmaClienteID,
	}

	if !product.IsControlled {
		return &item, nil
	}

	if req.SerialLot == "" {
		s.rejectItem("serial")
		return nil, shared.ErrSerialRequired
	}

	switch product.Kind {
	case KindWeapon:
		// A serial matching an available vault unit makes this a
		// ready-delivery sale; otherwise the weapon is sold to order.
		stockItem, err := s.repo.FindAvailableStockItem(ctx, product.ID, req.SerialLot)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("find stock item: %w", err)
		}
		if stockItem != nil {
			item.StockItemID = &stockItem.ID
		}
	case KindAmmunition:
		if req.ArmaClienteID == nil {
			s.rejectItem("craf")
			return nil, shared.ErrWeaponLinkRequired
		}
		weapon, err := s.repo.GetClientWeapon(ctx, *req.ArmaClienteID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.rejectItem("craf")
				return nil, shared.ErrWeaponLinkRequired
			}
			return nil, fmt.Errorf("get client weapon: %w", err)
		}
		if weapon.ClientID != req.ClientID {
			s.rejectItem("craf")
			return nil, ErrWeaponNotOwned
		}
		if product.Caliber != "" && weapon.Caliber != product.Caliber {
			s.rejectItem("calibre")
			return nil, ErrWeaponCaliberMismatch
		}
	}

	return &item, nil
}

func (s *Service) rejectItem(reason string) {
	if s.metrics != nil {
		s.metrics.CartItemsRejected.WithLabelValues(reason).Inc()
	}
}

// classifySale derives the workflow type and initial stage from the
// cart contents. Hierarchy: weapon > ammunition > free.
func classifySale(items []CartItem) (ProductKind, string, bool) {
	var hasWeapon, hasAmmo, hasOrder bool
	for _, item := range items {
		switch item.Kind {
		case KindWeapon:
			hasWeapon = true
			if item.StockItemID == nil {
				hasOrder = true
			}
		case KindAmmunition:
			hasAmmo = true
		}
	}
	switch {
	case hasWeapon:
		return KindWeapon, StageDraft, hasOrder
	case hasAmmo:
		return KindAmmunition, StageCRAFValidation, false
	default:
		return KindFree, StageCompletionPending, false
	}
}

// Finalize persists the cart as a sale in one atomic transaction,
// reserving serialized stock units along the way. On any failure the
// durable state is unchanged and the counter may retry the same POST;
// idempotencyKey deduplicates those retries when provided.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest, idempotencyKey string) (*Sale, error) {
	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.ErrNoClient
		}
		return nil, fmt.Errorf("get client: %w", err)
	}

	// Rebuild the cart through the state container so finalization is
	// guarded by exactly the same invariants the counter enforces.
	cart := NewCart()
	cart.SelectClient(client.ID, client.Name, client.Document)
	for _, item := range req.Items {
		if err := cart.StageItem(item, -1); err != nil {
			return nil, err
		}
		if err := cart.CommitStaged(item); err != nil {
			return nil, err
		}
	}
	cart.SetDiscount(req.Discount)
	if err := cart.ValidateForFinalize(); err != nil {
		return nil, err
	}

	if !req.PaymentDetails.Method.Valid() {
		return nil, ErrInvalidPayment
	}

	// Totals are recomputed server-side; the payload figures are only
	// what the counter displayed.
	total := cart.Total()
	change := cart.Change(req.PaymentDetails.Received)
	if change < 0 {
		return nil, fmt.Errorf("%w: recebido %.2f, total %.2f",
			ErrInsufficientReceived, req.PaymentDetails.Received, total)
	}

	if s.idem != nil && idempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, "vendas"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, fmt.Errorf("%w: venda ja processada", shared.ErrIdempotencyConflict)
			}
			return nil, fmt.Errorf("idempotency check: %w", err)
		}
	}

	processType, stage, hasOrder := classifySale(cart.Items())
	operator := shared.OperatorFromContext(ctx)
	seller := operator.Name
	if seller == "" {
		seller = "Sistema"
	}

	itemCount := 0
	for _, item := range cart.Items() {
		itemCount += item.Quantity
	}

	sale := Sale{
		Code:           uuid.NewString(),
		ClientID:       client.ID,
		ClientName:     client.Name,
		ClientDocument: client.Document,
		Seller:         seller,
		Status:         "aberto",
		FinanceStatus:  "pendente",
		ProcessType:    processType,
		Stage:          stage,
		Subtotal:       cart.Subtotal(),
		Discount:       cart.Discount(),
		Total:          total,
		Received:       req.PaymentDetails.Received,
		Change:         change,
		PaymentMethod:  req.PaymentDetails.Method,
		ItemCount:      itemCount,
		HasOrderItems:  hasOrder,
	}

	var saleID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.CreateSale(ctx, sale)
		if err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		saleID = id

		for _, item := range cart.Items() {
			line := SaleItem{
				SaleID:        saleID,
				ProductID:     item.ProductID,
				ProductName:   item.ProductName,
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				TotalItem:     item.TotalItem,
				SerialLot:     item.SerialLot,
				StockItemID:   item.StockItemID,
				ArmaClienteID: item.ArmaClienteID,
			}
			if _, err := repo.InsertSaleItem(ctx, line); err != nil {
				return fmt.Errorf("insert sale item: %w", err)
			}
			if item.StockItemID != nil {
				if err := repo.ReserveStockItem(ctx, *item.StockItemID, saleID); err != nil {
					if errors.Is(err, ErrNotFound) {
						return fmt.Errorf("%w: serial %s", ErrSerialUnavailable, item.SerialLot)
					}
					return fmt.Errorf("reserve stock item: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		// Free the key so the counter can retry the same sale.
		if s.idem != nil && idempotencyKey != "" {
			if delErr := s.idem.Delete(ctx, idempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	sale.ID = saleID
	s.recordAudit(ctx, operator.ID, "venda.finalizada", saleID, map[string]any{
		"total":           sale.Total,
		"tipo_processo":   string(sale.ProcessType),
		"forma_pagamento": string(sale.PaymentMethod),
	})
	if s.metrics != nil {
		s.metrics.SalesFinalized.Inc()
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueSalePostProcess(ctx, saleID); err != nil {
			// The sale is committed; post-processing catches up later.
			s.logger.Warn("enqueue sale post-process", slog.Int64("sale_id", saleID), slog.Any("error", err))
		}
	}

	return &sale, nil
}

// Cancel cancels a finalized sale and releases any reserved stock units.
func (s *Service) Cancel(ctx context.Context, saleID int64) (*Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if sale.Status == "cancelado" {
		return nil, ErrSaleAlreadyCancelled
	}

	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.ReleaseStockItems(ctx, saleID); err != nil {
			return fmt.Errorf("release stock items: %w", err)
		}
		if err := repo.MarkSaleCancelled(ctx, saleID, now); err != nil {
			return fmt.Errorf("mark sale cancelled: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	operator := shared.OperatorFromContext(ctx)
	s.recordAudit(ctx, operator.ID, "venda.cancelada", saleID, nil)
	if s.metrics != nil {
		s.metrics.SalesCancelled.Inc()
	}

	return s.repo.GetSale(ctx, saleID)
}

// GetSale loads a sale with its lines.
func (s *Service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales returns a page of sale headers, most recent first.
func (s *Service) ListSales(ctx context.Context, page, perPage int) ([]Sale, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	sales, total, err := s.repo.ListSales(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list sales: %w", err)
	}
	if sales == nil {
		sales = []Sale{}
	}
	return sales, shared.NewPagination(p.Page, p.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "venda",
		EntityID: fmt.Sprintf("%d", saleID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
