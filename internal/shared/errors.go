package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrNoClient indicates a cart operation that requires a selected client.
	ErrNoClient = errors.New("cliente nao selecionado")
	// ErrEmptyCart indicates finalization of a cart without items.
	ErrEmptyCart = errors.New("carrinho vazio")
	// ErrInsufficientStock indicates the requested quantity exceeds stock.
	ErrInsufficientStock = errors.New("estoque insuficiente")
	// ErrSerialRequired indicates a controlled item without serial/lot.
	ErrSerialRequired = errors.New("item controlado requer serial ou lote")
	// ErrWeaponLinkRequired indicates ammunition without a linked client weapon.
	ErrWeaponLinkRequired = errors.New("municao requer vinculo com arma do cliente")
)
