// Package cart holds the mutable, pre-commit working set of line items for
// the current transaction. A cart is owned by exactly one terminal session
// and is never shared, so it carries no locking of its own.
package cart

import (
	"fmt"

	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/store"
)

type Cart struct {
	lines []domain.SaleItem
}

func New() *Cart {
	return &Cart{}
}

// Add puts qty units of the product in the cart, incrementing an existing
// line if one is present. The unit price is snapshotted from the product at
// add-time. Adding is rejected when the product is out of stock or when the
// resulting line quantity would exceed the currently available stock; the
// cart is left unchanged in both cases.
func (c *Cart) Add(product domain.Product, qty int) error {
	if qty < 1 {
		qty = 1
	}
	if product.Stock <= 0 {
		return fmt.Errorf("%w: %s is out of stock", store.ErrInsufficientStock, product.Name)
	}

	for i := range c.lines {
		if c.lines[i].ProductID != product.ID {
			continue
		}
		newQty := c.lines[i].Quantity + qty
		if newQty > product.Stock {
			return fmt.Errorf("%w: only %d of %s available", store.ErrInsufficientStock, product.Stock, product.Name)
		}
		c.lines[i].Quantity = newQty
		c.lines[i].TotalPriceCents = int64(newQty) * c.lines[i].UnitPriceCents
		return nil
	}

	if qty > product.Stock {
		return fmt.Errorf("%w: only %d of %s available", store.ErrInsufficientStock, product.Stock, product.Name)
	}
	c.lines = append(c.lines, domain.SaleItem{
		ProductID:       product.ID,
		ProductName:     product.Name,
		Quantity:        qty,
		UnitPriceCents:  product.PriceCents,
		TotalPriceCents: int64(qty) * product.PriceCents,
	})
	return nil
}

// SetQuantity replaces a line's quantity. A quantity of zero or less removes
// the line; a quantity above the product's current stock is rejected and the
// line keeps its prior value.
func (c *Cart) SetQuantity(product domain.Product, qty int) error {
	if qty <= 0 {
		c.Remove(product.ID)
		return nil
	}
	if qty > product.Stock {
		return fmt.Errorf("%w: only %d of %s available", store.ErrInsufficientStock, product.Stock, product.Name)
	}

	for i := range c.lines {
		if c.lines[i].ProductID != product.ID {
			continue
		}
		c.lines[i].Quantity = qty
		c.lines[i].TotalPriceCents = int64(qty) * c.lines[i].UnitPriceCents
		return nil
	}
	return fmt.Errorf("%w: %s is not in the cart", store.ErrNotFound, product.Name)
}

func (c *Cart) Remove(productID string) {
	kept := c.lines[:0]
	for _, line := range c.lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	c.lines = kept
}

// Clear empties the cart unconditionally. Clearing an empty cart is a no-op.
func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the cart contents. Callers may hold onto the slice
// across later cart mutations; committed sales rely on this for snapshot
// immutability.
func (c *Cart) Lines() []domain.SaleItem {
	out := make([]domain.SaleItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Quantity reports the current quantity of a product in the cart, zero when
// the product has no line.
func (c *Cart) Quantity(productID string) int {
	for _, line := range c.lines {
		if line.ProductID == productID {
			return line.Quantity
		}
	}
	return 0
}
