package pos

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m4-gestao/m4-pdv/internal/platform/db"
)

// ErrNotFound indicates a record lookup miss.
var ErrNotFound = errors.New("record not found")

// Repository is the persistence surface of the vendas module.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	SearchClients(ctx context.Context, query string, limit int) ([]ClientSummary, error)
	GetClient(ctx context.Context, id int64) (*ClientSummary, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]ProductSummary, error)
	GetProduct(ctx context.Context, id int64) (*ProductSummary, error)
	ListClientWeapons(ctx context.Context, clientID int64, caliber string) ([]ClientWeapon, error)
	GetClientWeapon(ctx context.Context, id int64) (*ClientWeapon, error)

	FindAvailableStockItem(ctx context.Context, productID int64, serial string) (*StockItem, error)
	ReserveStockItem(ctx context.Context, id, saleID int64) error
	ReleaseStockItems(ctx context.Context, saleID int64) error

	CreateSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItem(ctx context.Context, item SaleItem) (int64, error)
	GetSale(ctx context.Context, id int64) (*Sale, error)
	ListSales(ctx context.Context, limit, offset int) ([]Sale, int, error)
	MarkSaleCancelled(ctx context.Context, id int64, at time.Time) error
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

// NewRepository returns a PostgreSQL-backed vendas repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) SearchClients(ctx context.Context, query string, limit int) ([]ClientSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, nome, documento, COALESCE(cr, 'N/A'), COALESCE(status_analise, 'VERIFICAR')
		FROM clientes
		WHERE nome ILIKE $1 || '%' OR documento ILIKE '%' || $1 || '%'
		ORDER BY nome
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []ClientSummary
	for rows.Next() {
		var c ClientSummary
		if err := rows.Scan(&c.ID, &c.Name, &c.Document, &c.CR, &c.Status); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *repository) GetClient(ctx context.Context, id int64) (*ClientSummary, error) {
	var c ClientSummary
	err := r.db.QueryRow(ctx, `
		SELECT id, nome, documento, COALESCE(cr, 'N/A'), COALESCE(status_analise, 'VERIFICAR')
		FROM clientes WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Document, &c.CR, &c.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

const productColumns = `
	p.id, p.nome, COALESCE(p.codigo_interno, ''), COALESCE(p.preco_venda, 0),
	COALESCE(p.estoque_atual, 0), COALESCE(p.is_controlado, FALSE),
	COALESCE(p.calibre, ''), COALESCE(p.tipo, ''), COALESCE(p.categoria, '')`

func scanProduct(row pgx.Row) (*ProductSummary, error) {
	var p ProductSummary
	var productType, category string
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.SalePrice, &p.StockAvailable,
		&p.IsControlled, &p.Caliber, &productType, &category)
	if err != nil {
		return nil, err
	}
	p.Kind = ClassifyProduct(productType, category, p.Name)
	return &p, nil
}

func (r *repository) SearchProducts(ctx context.Context, query string, limit int) ([]ProductSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM produtos p
		WHERE p.ativo
		  AND (p.nome ILIKE '%' || $1 || '%'
		       OR p.codigo_interno ILIKE $1 || '%'
		       OR p.codigo_barras ILIKE $1 || '%')
		ORDER BY p.nome
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []ProductSummary
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *repository) GetProduct(ctx context.Context, id int64) (*ProductSummary, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+` FROM produtos p WHERE p.id = $1 AND p.ativo`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repository) ListClientWeapons(ctx context.Context, clientID int64, caliber string) ([]ClientWeapon, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(descricao, ''), COALESCE(numero_serie, ''),
		       COALESCE(sistema, ''), COALESCE(calibre, '')
		FROM armas
		WHERE cliente_id = $1 AND ($2 = '' OR calibre = $2)
		ORDER BY descricao`, clientID, caliber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weapons []ClientWeapon
	for rows.Next() {
		var w ClientWeapon
		if err := rows.Scan(&w.ID, &w.Description, &w.SerialNumber, &w.System, &w.Caliber); err != nil {
			return nil, err
		}
		weapons = append(weapons, w)
	}
	return weapons, rows.Err()
}

func (r *repository) GetClientWeapon(ctx context.Context, id int64) (*ClientWeapon, error) {
	var w ClientWeapon
	err := r.db.QueryRow(ctx, `
		SELECT id, cliente_id, COALESCE(descricao, ''), COALESCE(numero_serie, ''),
		       COALESCE(sistema, ''), COALESCE(calibre, '')
		FROM armas WHERE id = $1`, id).
		Scan(&w.ID, &w.ClientID, &w.Description, &w.SerialNumber, &w.System, &w.Caliber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *repository) FindAvailableStockItem(ctx context.Context, productID int64, serial string) (*StockItem, error) {
	var item StockItem
	err := r.db.QueryRow(ctx, `
		SELECT id, produto_id, numero_serie, status
		FROM estoque_itens
		WHERE produto_id = $1 AND numero_serie = $2 AND status = 'disponivel'`,
		productID, serial).
		Scan(&item.ID, &item.ProductID, &item.SerialNumber, &item.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) ReserveStockItem(ctx context.Context, id, saleID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE estoque_itens
		SET status = 'reservado', venda_id = $2, observacoes = 'Reservado Venda #' || $2
		WHERE id = $1 AND status = 'disponivel'`, id, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ReleaseStockItems(ctx context.Context, saleID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE estoque_itens
		SET status = 'disponivel', venda_id = NULL, observacoes = NULL
		WHERE venda_id = $1 AND status = 'reservado'`, saleID)
	return err
}

func (r *repository) CreateSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO vendas (
			codigo, cliente_id, cliente_nome, documento_cliente, vendedor,
			status, status_financeiro, tipo_processo, etapa,
			subtotal, desconto_valor, valor_total, valor_recebido, troco,
			forma_pagamento, qtd_total_itens, tem_encomenda, data_abertura
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		RETURNING id`,
		sale.Code, sale.ClientID, sale.ClientName, sale.ClientDocument, sale.Seller,
		sale.Status, sale.FinanceStatus, sale.ProcessType, sale.Stage,
		sale.Subtotal, sale.Discount, sale.Total, sale.Received, sale.Change,
		sale.PaymentMethod, sale.ItemCount, sale.HasOrderItems,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertSaleItem(ctx context.Context, item SaleItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO itens_venda (
			venda_id, produto_id, produto_nome, quantidade,
			valor_unitario, valor_total, serial_lote, item_estoque_id, arma_cliente_id
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		RETURNING id`,
		item.SaleID, item.ProductID, item.ProductName, item.Quantity,
		item.UnitPrice, item.TotalItem, item.SerialLot, item.StockItemID, item.ArmaClienteID,
	).Scan(&id)
	return id, err
}

func (r *repository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	var s Sale
	err := r.db.QueryRow(ctx, `
		SELECT id, codigo, cliente_id, cliente_nome, documento_cliente, vendedor,
		       status, status_financeiro, tipo_processo, etapa,
		       subtotal, desconto_valor, valor_total, valor_recebido, troco,
		       forma_pagamento, qtd_total_itens, tem_encomenda, data_abertura, data_cancelamento
		FROM vendas WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.ClientID, &s.ClientName, &s.ClientDocument, &s.Seller,
			&s.Status, &s.FinanceStatus, &s.ProcessType, &s.Stage,
			&s.Subtotal, &s.Discount, &s.Total, &s.Received, &s.Change,
			&s.PaymentMethod, &s.ItemCount, &s.HasOrderItems, &s.CreatedAt, &s.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, venda_id, produto_id, produto_nome, quantidade,
		       valor_unitario, valor_total, COALESCE(serial_lote, ''), item_estoque_id, arma_cliente_id
		FROM itens_venda WHERE venda_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.TotalItem, &it.SerialLot, &it.StockItemID, &it.ArmaClienteID); err != nil {
			return nil, err
		}
		s.Items = append(s.Items, it)
	}
	return &s, rows.Err()
}

func (r *repository) ListSales(ctx context.Context, limit, offset int) ([]Sale, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vendas`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, codigo, cliente_id, cliente_nome, documento_cliente, vendedor,
		       status, status_financeiro, tipo_processo, etapa,
		       subtotal, desconto_valor, valor_total, valor_recebido, troco,
		       forma_pagamento, qtd_total_itens, tem_encomenda, data_abertura, data_cancelamento
		FROM vendas
		ORDER BY data_abertura DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.Code, &s.ClientID, &s.ClientName, &s.ClientDocument, &s.Seller,
			&s.Status, &s.FinanceStatus, &s.ProcessType, &s.Stage,
			&s.Subtotal, &s.Discount, &s.Total, &s.Received, &s.Change,
			&s.PaymentMethod, &s.ItemCount, &s.HasOrderItems, &s.CreatedAt, &s.CancelledAt); err != nil {
			return nil, 0, err
		}
		sales = append(sales, s)
	}
	return sales, total, rows.Err()
}

func (r *repository) MarkSaleCancelled(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE vendas
		SET status = 'cancelado', etapa = $2, data_cancelamento = $3
		WHERE id = $1 AND status <> 'cancelado'`, id, StageCancelled, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
