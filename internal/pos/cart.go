package pos

import (
	"errors"
	"fmt"

	"github.com/m4-gestao/m4-pdv/internal/shared"
)

// ErrInvalidItem flags a line failing local validation (non-positive
// quantity or price). No network call is made for these.
var ErrInvalidItem = errors.New("dados do item invalidos")

// Cart is the point-of-sale cart state container. It owns all cart
// mutation and knows nothing about HTTP or rendering. Item order is
// strictly insertion order and the index is the only addressing
// mechanism: removing item i shifts all later indices down by one.
//
// A Cart lives for a single counter session. It is not safe for
// concurrent use; a session is single-threaded by construction.
type Cart struct {
	clientID       int64
	clientName     string
	clientDocument string

	items    []CartItem
	discount float64

	staged      *CartItem
	stagedIndex int
}

// NewCart returns an empty cart with no client selected.
func NewCart() *Cart {
	return &Cart{stagedIndex: -1}
}

// ClientID returns the selected client, zero when none.
func (c *Cart) ClientID() int64 { return c.clientID }

// HasClient reports whether a client has been selected.
func (c *Cart) HasClient() bool { return c.clientID > 0 }

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of lines in the cart.
func (c *Cart) Len() int { return len(c.items) }

// SelectClient sets the client for the sale. It returns true when a
// different client was already selected and the cart has items: the
// linked-weapon references of ammunition lines are client-specific, so
// the caller must confirm with the operator before proceeding. The cart
// is never cleared automatically.
func (c *Cart) SelectClient(id int64, name, document string) (needsConfirmation bool) {
	needsConfirmation = c.clientID > 0 && c.clientID != id && len(c.items) > 0
	c.clientID = id
	c.clientName = name
	c.clientDocument = document
	return needsConfirmation
}

// StageItem stages an item for configuration. index -1 appends on
// commit; any other index replaces the existing line (editing). Staging
// fails fast when no client is selected yet.
func (c *Cart) StageItem(item CartItem, index int) error {
	if !c.HasClient() {
		return shared.ErrNoClient
	}
	if index < -1 || index >= len(c.items) {
		return fmt.Errorf("invalid cart index %d", index)
	}
	item.TotalItem = shared.Round2(float64(item.Quantity) * item.UnitPrice)
	c.staged = &item
	c.stagedIndex = index
	return nil
}

// Staged returns the item under configuration, nil when none.
func (c *Cart) Staged() *CartItem { return c.staged }

// DiscardStaged clears the staged item (modal dismissal).
func (c *Cart) DiscardStaged() {
	c.staged = nil
	c.stagedIndex = -1
}

// CommitStaged inserts or replaces the staged item after server-side
// validation produced the final line. The staged slot is cleared on
// success only; a failed commit leaves the cart unchanged for retry.
func (c *Cart) CommitStaged(validated CartItem) error {
	if c.staged == nil {
		return fmt.Errorf("no staged item to commit")
	}
	if validated.Quantity < 1 {
		return fmt.Errorf("%w: quantidade deve ser positiva", ErrInvalidItem)
	}
	if !(validated.UnitPrice > 0) {
		return fmt.Errorf("%w: preco unitario deve ser positivo", ErrInvalidItem)
	}
	// The line total is always derived from quantity and unit price; a
	// payload-supplied figure is display state and never trusted.
	validated.TotalItem = shared.Round2(float64(validated.Quantity) * validated.UnitPrice)
	if c.stagedIndex >= 0 {
		c.items[c.stagedIndex] = validated
	} else {
		c.items = append(c.items, validated)
	}
	c.DiscardStaged()
	return nil
}

// RemoveItem removes the line at index. Removal is local and
// unconditional; only add/edit is server-validated.
func (c *Cart) RemoveItem(index int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("invalid cart index %d", index)
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	return nil
}

// SetDiscount sets the flat discount amount. Negative values clamp to
// zero.
func (c *Cart) SetDiscount(amount float64) {
	if amount < 0 {
		amount = 0
	}
	c.discount = amount
}

// Discount returns the flat discount amount.
func (c *Cart) Discount() float64 { return c.discount }

// Subtotal sums the line totals.
func (c *Cart) Subtotal() float64 {
	var subtotal float64
	for _, item := range c.items {
		subtotal += item.TotalItem
	}
	return shared.Round2(subtotal)
}

// Total is the subtotal minus the flat discount, floored at zero.
func (c *Cart) Total() float64 {
	total := c.Subtotal() - c.discount
	if total < 0 {
		total = 0
	}
	return shared.Round2(total)
}

// Change computes the change due for the amount received. Finalization
// must be refused while the change is negative.
func (c *Cart) Change(received float64) float64 {
	return shared.Round2(received - c.Total())
}

// CheckItemRequirements enforces the controlled-goods invariant on a
// single line: a controlled item needs a serial or lot, and ammunition
// additionally needs a linked client weapon.
func CheckItemRequirements(item CartItem) error {
	if !item.IsControlled {
		return nil
	}
	if item.SerialLot == "" {
		return shared.ErrSerialRequired
	}
	if item.Kind == KindAmmunition && item.ArmaClienteID == nil {
		return shared.ErrWeaponLinkRequired
	}
	return nil
}

// ValidateForFinalize checks the whole cart against the finalization
// guards: a client, at least one item, and every controlled line
// carrying its references.
func (c *Cart) ValidateForFinalize() error {
	if !c.HasClient() {
		return shared.ErrNoClient
	}
	if len(c.items) == 0 {
		return shared.ErrEmptyCart
	}
	for i, item := range c.items {
		if err := CheckItemRequirements(item); err != nil {
			return fmt.Errorf("item %d (%s): %w", i+1, item.ProductName, err)
		}
	}
	return nil
}
