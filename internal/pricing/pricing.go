// Package pricing contains the pure totals arithmetic for a cart. All amounts
// are integer cents; percentage and rate math goes through shopspring/decimal
// and rounds half away from zero at cent boundaries.
//
// Shelf prices are tax-EXCLUSIVE: VAT is charged on top of the discounted
// subtotal. The tax-inclusive variant seen in older terminal builds is
// deliberately not supported.
package pricing

import (
	"github.com/shopspring/decimal"

	"mzansipos/terminal/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// Compute derives the totals for a set of cart lines under a percentage
// discount and a tax rate (e.g. 0.15 for 15% VAT).
// total = (subtotal - discount) + tax, tax = round((subtotal - discount) * rate).
func Compute(lines []domain.SaleItem, discountPercent float64, taxRate float64) domain.Totals {
	subtotal := int64(0)
	for _, line := range lines {
		subtotal += line.TotalPriceCents
	}

	if discountPercent < 0 {
		discountPercent = 0
	}
	if discountPercent > 100 {
		discountPercent = 100
	}

	discount := decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromFloat(discountPercent)).
		Div(oneHundred).
		Round(0).
		IntPart()
	if discount > subtotal {
		discount = subtotal
	}

	taxBase := subtotal - discount
	tax := decimal.NewFromInt(taxBase).
		Mul(decimal.NewFromFloat(taxRate)).
		Round(0).
		IntPart()

	return domain.Totals{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TaxCents:      tax,
		TotalCents:    taxBase + tax,
	}
}

// ChangeDue is the cash change owed for a tendered amount, never negative.
func ChangeDue(totalCents int64, cashReceivedCents int64) int64 {
	if cashReceivedCents <= totalCents {
		return 0
	}
	return cashReceivedCents - totalCents
}

// Consistent reports whether a committed sale's stored totals agree with each
// other. Used by the committer as a defensive re-check before anything is
// written to the ledger.
func Consistent(t domain.Totals) bool {
	if t.SubtotalCents < 0 || t.DiscountCents < 0 || t.TaxCents < 0 {
		return false
	}
	if t.DiscountCents > t.SubtotalCents {
		return false
	}
	return t.TotalCents == t.SubtotalCents-t.DiscountCents+t.TaxCents
}
