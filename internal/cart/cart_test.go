package cart

import (
	"errors"
	"testing"

	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/store"
)

var milk = domain.Product{
	ID:         "p1",
	Name:       "Fresh Milk 2L",
	PriceCents: 3499,
	Stock:      50,
}

func TestAddSnapshotsPrice(t *testing.T) {
	c := New()
	if err := c.Add(milk, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].UnitPriceCents != 3499 || lines[0].TotalPriceCents != 6998 {
		t.Fatalf("unexpected price snapshot: %+v", lines[0])
	}

	// A later catalog price change must not affect the existing line.
	repriced := milk
	repriced.PriceCents = 9999
	if err := c.Add(repriced, 1); err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	lines = c.Lines()
	if lines[0].UnitPriceCents != 3499 {
		t.Fatalf("expected snapshotted unit price 3499, got %d", lines[0].UnitPriceCents)
	}
	if lines[0].TotalPriceCents != 3*3499 {
		t.Fatalf("expected line total %d, got %d", 3*3499, lines[0].TotalPriceCents)
	}
}

func TestAddRejectsOutOfStock(t *testing.T) {
	c := New()
	empty := milk
	empty.Stock = 0

	err := c.Add(empty, 1)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if !c.IsEmpty() {
		t.Fatalf("expected cart to stay empty")
	}
}

func TestAddRejectsIncrementBeyondStock(t *testing.T) {
	c := New()
	scarce := milk
	scarce.Stock = 3

	if err := c.Add(scarce, 3); err != nil {
		t.Fatalf("add up to stock failed: %v", err)
	}
	err := c.Add(scarce, 1)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := c.Quantity(scarce.ID); got != 3 {
		t.Fatalf("expected quantity to remain 3, got %d", got)
	}
}

func TestSetQuantityRejectsBeyondStock(t *testing.T) {
	c := New()
	scarce := milk
	scarce.Stock = 3

	// Never added: the rejected set leaves the quantity at zero.
	err := c.SetQuantity(scarce, 5)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := c.Quantity(scarce.ID); got != 0 {
		t.Fatalf("expected quantity 0, got %d", got)
	}

	if err := c.Add(scarce, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	err = c.SetQuantity(scarce, 5)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := c.Quantity(scarce.ID); got != 2 {
		t.Fatalf("expected quantity to remain 2, got %d", got)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	c := New()
	if err := c.Add(milk, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := c.SetQuantity(milk, 0); err != nil {
		t.Fatalf("set quantity 0 failed: %v", err)
	}
	if !c.IsEmpty() {
		t.Fatalf("expected empty cart after removing only line")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	c := New()
	if err := c.Add(milk, 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	c.Clear()
	if !c.IsEmpty() {
		t.Fatalf("expected empty cart after clear")
	}
	c.Clear()
	if !c.IsEmpty() {
		t.Fatalf("expected empty cart after second clear")
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	c := New()
	if err := c.Add(milk, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	snapshot := c.Lines()
	if err := c.SetQuantity(milk, 1); err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}

	if snapshot[0].Quantity != 2 {
		t.Fatalf("expected snapshot to keep quantity 2, got %d", snapshot[0].Quantity)
	}
}
