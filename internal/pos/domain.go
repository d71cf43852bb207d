package pos

import (
	"strings"
	"time"
)

// ProductKind classifies what regulatory treatment a product receives.
// The values double as the sale workflow type (tipo_processo).
type ProductKind string

const (
	// KindWeapon requires the full sale funnel and a reserved serial
	// when sold from stock.
	KindWeapon ProductKind = "arma"
	// KindAmmunition requires a lot reference and a link to a client
	// weapon of the same caliber (CRAF).
	KindAmmunition ProductKind = "municao"
	// KindFree is an unrestricted good.
	KindFree ProductKind = "livre"
)

// ClassifyProduct derives the kind from the product's type, category and
// name. The keyword heuristics mirror how the store catalogs were
// historically filled in, accents included.
func ClassifyProduct(productType, category, name string) ProductKind {
	t := strings.ToLower(productType)
	c := strings.ToLower(category)
	n := strings.ToLower(name)

	for _, kw := range []string{"arma", "fuzil", "pistola", "revolver", "revólver", "carabina", "espingarda"} {
		if strings.Contains(t, kw) || strings.Contains(c, kw) {
			return KindWeapon
		}
	}
	for _, kw := range []string{"munição", "municao", "pólvora", "polvora", "espoleta", "projétil", "projetil"} {
		if strings.Contains(t, kw) || strings.Contains(c, kw) || strings.Contains(n, kw) {
			return KindAmmunition
		}
	}
	return KindFree
}

// ClientSummary is the autocomplete projection of a client.
type ClientSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"nome"`
	Document string `json:"documento"`
	CR       string `json:"cr"`
	Status   string `json:"status"`
}

// ProductSummary is the search projection of a product.
type ProductSummary struct {
	ID             int64       `json:"id"`
	Name           string      `json:"nome"`
	SKU            string      `json:"sku"`
	SalePrice      float64     `json:"preco_venda"`
	StockAvailable int         `json:"estoque_disponivel"`
	IsControlled   bool        `json:"is_controlado"`
	Caliber        string      `json:"calibre"`
	Kind           ProductKind `json:"tipo"`
}

// ClientWeapon is a firearm registered to a client (CRAF record).
type ClientWeapon struct {
	ID           int64  `json:"id"`
	ClientID     int64  `json:"-"`
	Description  string `json:"descricao"`
	SerialNumber string `json:"numero_serie"`
	System       string `json:"sistema"`
	Caliber      string `json:"calibre"`
}

// StockItemStatus tracks a serialized stock unit through a sale.
type StockItemStatus string

const (
	StockItemAvailable StockItemStatus = "disponivel"
	StockItemReserved  StockItemStatus = "reservado"
	StockItemSold      StockItemStatus = "vendido"
)

// StockItem is a serialized physical unit (a weapon in the vault).
type StockItem struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"produto_id"`
	SerialNumber string          `json:"numero_serie"`
	Status       StockItemStatus `json:"status"`
}

// CartItem is a validated line in the point-of-sale cart. It lives only
// in the counter session until the sale is finalized.
type CartItem struct {
	ProductID      int64       `json:"product_id"`
	ProductName    string      `json:"product_name"`
	Quantity       int         `json:"quantity"`
	UnitPrice      float64     `json:"unit_price"`
	TotalItem      float64     `json:"total_item"`
	IsControlled   bool        `json:"is_controlled"`
	Kind           ProductKind `json:"tipo"`
	StockAvailable int         `json:"estoque_disponivel,omitempty"`
	SerialLot      string      `json:"serial_lote,omitempty"`
	CRAF           string      `json:"craf,omitempty"`
	ArmaClienteID  *int64      `json:"arma_cliente_id,omitempty"`
	StockItemID    *int64      `json:"item_estoque_id,omitempty"`
}

// PaymentMethod is the payment option selected in the payment dialog.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "DINHEIRO"
	PaymentDebitCard    PaymentMethod = "CARTAO_DEB"
	PaymentCreditCard   PaymentMethod = "CARTAO_CRED"
	PaymentPix          PaymentMethod = "PIX"
	PaymentBankTransfer PaymentMethod = "TRANSFERENCIA"
)

// Valid reports whether the method is one the counter accepts.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentDebitCard, PaymentCreditCard, PaymentPix, PaymentBankTransfer:
		return true
	}
	return false
}

// PaymentDetails is the payment breakdown collected at finalization.
type PaymentDetails struct {
	Method   PaymentMethod `json:"method" validate:"required"`
	Received float64       `json:"received" validate:"gte=0"`
	Change   float64       `json:"change"`
}

// Sale workflow stages. Weapons go through the full funnel, ammunition
// skips straight to CRAF validation, free goods only need payment and
// delivery.
const (
	StageDraft             = "RASCUNHO"
	StageCRAFValidation    = "VALIDACAO_CRAF"
	StageCompletionPending = "CONCLUSAO_PENDENTE"
	StageCancelled         = "CANCELADA"
)

// Sale is the persisted sale header.
type Sale struct {
	ID             int64         `json:"id"`
	Code           string        `json:"codigo"`
	ClientID       int64         `json:"cliente_id"`
	ClientName     string        `json:"cliente_nome"`
	ClientDocument string        `json:"documento_cliente"`
	Seller         string        `json:"vendedor"`
	Status         string        `json:"status"`
	FinanceStatus  string        `json:"status_financeiro"`
	ProcessType    ProductKind   `json:"tipo_processo"`
	Stage          string        `json:"etapa"`
	Subtotal       float64       `json:"subtotal"`
	Discount       float64       `json:"desconto_valor"`
	Total          float64       `json:"valor_total"`
	Received       float64       `json:"valor_recebido"`
	Change         float64       `json:"troco"`
	PaymentMethod  PaymentMethod `json:"forma_pagamento"`
	ItemCount      int           `json:"qtd_total_itens"`
	HasOrderItems  bool          `json:"tem_encomenda"`
	CreatedAt      time.Time     `json:"created_at"`
	CancelledAt    *time.Time    `json:"data_cancelamento,omitempty"`
	Items          []SaleItem    `json:"items,omitempty"`
}

// SaleItem is a persisted sale line. Product name and price are frozen
// at sale time.
type SaleItem struct {
	ID            int64   `json:"id"`
	SaleID        int64   `json:"venda_id"`
	ProductID     int64   `json:"produto_id"`
	ProductName   string  `json:"produto_nome"`
	Quantity      int     `json:"quantidade"`
	UnitPrice     float64 `json:"valor_unitario"`
	TotalItem     float64 `json:"valor_total"`
	SerialLot     string  `json:"serial_lote,omitempty"`
	StockItemID   *int64  `json:"item_estoque_id,omitempty"`
	ArmaClienteID *int64  `json:"arma_cliente_id,omitempty"`
}

// AddItemRequest is the wire payload of POST /vendas/api/cart/add_item.
type AddItemRequest struct {
	ClientID      int64   `json:"client_id" validate:"required,gt=0"`
	ProductID     int64   `json:"product_id" validate:"required,gt=0"`
	Quantity      int     `json:"quantity" validate:"required,gte=1"`
	UnitPrice     float64 `json:"unit_price" validate:"required,gt=0"`
	IsControlled  bool    `json:"is_controlled"`
	SerialLot     string  `json:"serial_lote"`
	CRAF          string  `json:"craf"`
	ArmaClienteID *int64  `json:"arma_cliente_id"`
}

// FinalizeRequest is the wire payload of POST /vendas/api/cart/finalize_sale.
type FinalizeRequest struct {
	ClientID       int64          `json:"client_id" validate:"required,gt=0"`
	Items          []CartItem     `json:"items" validate:"required,min=1,dive"`
	Subtotal       float64        `json:"subtotal" validate:"gte=0"`
	Discount       float64        `json:"discount" validate:"gte=0"`
	Total          float64        `json:"total" validate:"gte=0"`
	PaymentDetails PaymentDetails `json:"payment_details" validate:"required"`
}
