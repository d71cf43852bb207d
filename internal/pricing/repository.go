package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m4-gestao/m4-pdv/internal/platform/db"
)

// ErrNotFound indicates the product has no pricing profile.
var ErrNotFound = errors.New("pricing profile not found")

// Repository persists pricing profiles and price history.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetProductPricing(ctx context.Context, productID int64) (*ProductPricing, error)
	UpdateProductPricing(ctx context.Context, productID int64, in PriceInputs, salePrice float64) error
	InsertHistory(ctx context.Context, entry HistoryEntry) (int64, error)
	ListHistory(ctx context.Context, productID int64, limit int) ([]HistoryEntry, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed pricing repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const pricingColumns = `
	preco_fornecedor, desconto_fornecedor, frete, ipi_tipo, ipi_valor,
	difal, imposto_venda, lucro_alvo, margem, preco_final, preco_venda,
	promo_ativa, promo_preco, promo_inicio, promo_fim, updated_at`

func (r *repository) GetProductPricing(ctx context.Context, productID int64) (*ProductPricing, error) {
	row := r.db.QueryRow(ctx, `SELECT id,`+pricingColumns+` FROM produtos WHERE id = $1`, productID)

	var p ProductPricing
	var promo Promotion
	err := row.Scan(
		&p.ProductID,
		&p.Inputs.SupplierPrice,
		&p.Inputs.SupplierDiscountPct,
		&p.Inputs.Freight,
		&p.Inputs.IPIMode,
		&p.Inputs.IPIValue,
		&p.Inputs.DIFALPct,
		&p.Inputs.SalesTaxPct,
		&p.Inputs.TargetProfit,
		&p.Inputs.TargetMarginPct,
		&p.Inputs.FinalPrice,
		&p.SalePrice,
		&promo.Active,
		&promo.Price,
		&promo.StartDate,
		&promo.EndDate,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if promo.Active || promo.Price > 0 {
		p.Inputs.Promotion = &promo
	}
	return &p, nil
}

func (r *repository) UpdateProductPricing(ctx context.Context, productID int64, in PriceInputs, salePrice float64) error {
	promo := in.Promotion
	if promo == nil {
		promo = &Promotion{}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE produtos SET
			preco_fornecedor = $2, desconto_fornecedor = $3, frete = $4,
			ipi_tipo = $5, ipi_valor = $6, difal = $7, imposto_venda = $8,
			lucro_alvo = $9, margem = $10, preco_final = $11, preco_venda = $12,
			promo_ativa = $13, promo_preco = $14, promo_inicio = $15, promo_fim = $16,
			updated_at = NOW()
		WHERE id = $1`,
		productID,
		in.SupplierPrice, in.SupplierDiscountPct, in.Freight,
		in.IPIMode, in.IPIValue, in.DIFALPct, in.SalesTaxPct,
		in.TargetProfit, in.TargetMarginPct, in.FinalPrice, salePrice,
		promo.Active, promo.Price, promo.StartDate, promo.EndDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) InsertHistory(ctx context.Context, entry HistoryEntry) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO precificacao_historico (produto_id, preco_anterior, preco_novo, alterado_por, registrado_em)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id`,
		entry.ProductID, entry.OldPrice, entry.NewPrice, entry.ChangedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) ListHistory(ctx context.Context, productID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, produto_id, preco_anterior, preco_novo, alterado_por, registrado_em
		FROM precificacao_historico
		WHERE produto_id = $1
		ORDER BY registrado_em DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.OldPrice, &e.NewPrice, &e.ChangedBy, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
