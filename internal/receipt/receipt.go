// Package receipt renders till slips as a text preview plus the raw ESC/POS
// byte stream for a thermal printer bridge.
package receipt

import (
	"fmt"
	"strings"

	"mzansipos/terminal/internal/domain"
)

const storeName = "Mzansi POS"

// Rand formats integer cents as a rand amount, e.g. "R34.99".
func Rand(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR%d.%02d", sign, cents/100, cents%100)
}

// ForSale renders a retail sale slip.
func ForSale(sale *domain.Sale) (preview string, escpos []byte) {
	lines := []string{
		storeName,
		"========================",
		"Sale: " + sale.ID,
		"Date: " + sale.Timestamp.Format("2006-01-02 15:04:05"),
		"Cashier: " + sale.CashierID,
		"------------------------",
	}
	for _, item := range sale.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.ProductName, item.Quantity))
		lines = append(lines, "  "+Rand(item.TotalPriceCents))
	}
	lines = append(lines,
		"------------------------",
		"Subtotal : "+Rand(sale.SubtotalCents),
	)
	if sale.DiscountCents > 0 {
		lines = append(lines, "Discount : -"+Rand(sale.DiscountCents))
	}
	lines = append(lines,
		"VAT      : "+Rand(sale.TaxCents),
		"Total    : "+Rand(sale.TotalCents),
		"Paid via : "+sale.PaymentMethod,
	)
	if sale.PaymentMethod == domain.PaymentCash {
		lines = append(lines,
			"Tendered : "+Rand(sale.CashReceivedCents),
			"Change   : "+Rand(sale.ChangeCents),
		)
	}
	if sale.PaymentReference != "" {
		lines = append(lines, "Ref      : "+sale.PaymentReference)
	}
	lines = append(lines,
		"========================",
		"Thank you, come again",
		"",
	)
	return strings.Join(lines, "\n"), encode(lines)
}

// ForFlash renders a VAS transaction slip. The dispensed token, when
// present, is the part the customer actually paid for.
func ForFlash(tx *domain.FlashTransaction) (preview string, escpos []byte) {
	lines := []string{
		storeName,
		"========================",
		tx.Type + " - " + tx.Provider,
		"Ref : " + tx.Reference,
		"Date: " + tx.Timestamp.Format("2006-01-02 15:04:05"),
		"------------------------",
		"Amount   : " + Rand(tx.AmountCents),
	}
	if tx.CustomerPhone != "" {
		lines = append(lines, "Phone    : "+tx.CustomerPhone)
	}
	if tx.Token != "" {
		lines = append(lines,
			"------------------------",
			"TOKEN:",
			tx.Token,
		)
	}
	lines = append(lines,
		"========================",
		"Thank you, come again",
		"",
	)
	return strings.Join(lines, "\n"), encode(lines)
}

// encode wraps the text in printer init and partial-cut commands.
func encode(lines []string) []byte {
	out := []byte{0x1b, 0x40}
	for _, line := range lines {
		out = append(out, []byte(line)...)
		out = append(out, '\n')
	}
	out = append(out, []byte{0x1d, 0x56, 0x41, 0x10}...)
	return out
}
