package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/store"
)

func testSale(items []domain.SaleItem, method string) domain.Sale {
	var subtotal int64
	for _, item := range items {
		subtotal += item.TotalPriceCents
	}
	tax := (subtotal*15 + 50) / 100
	sale := domain.Sale{
		Items:         items,
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
		PaymentMethod: method,
		CashierID:     "cashier",
		Currency:      "ZAR",
	}
	if method == domain.PaymentCash {
		sale.CashReceivedCents = sale.TotalCents
	}
	return sale
}

func TestCommitSaleDeductsStockAndAppendsLedger(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale([]domain.SaleItem{
		{ProductID: "p1", ProductName: "Fresh Milk 2L", Quantity: 2, UnitPriceCents: 3499, TotalPriceCents: 6998},
	}, domain.PaymentCash)
	sale.CashReceivedCents = 10000

	committed, err := s.CommitSale(ctx, sale, true)
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if committed.ID == "" {
		t.Fatal("expected a generated sale ID")
	}
	if committed.TotalCents != 8048 {
		t.Fatalf("total = %d, want 8048", committed.TotalCents)
	}

	milk, err := s.GetProductByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProductByID: %v", err)
	}
	if milk.Stock != 48 {
		t.Fatalf("milk stock = %d, want 48", milk.Stock)
	}

	sales, err := s.ListSales(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("ledger has %d sales, want 1", len(sales))
	}

	logs, err := s.ListInventoryLogs(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListInventoryLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Change != -2 {
		t.Fatalf("inventory logs = %+v, want one entry with change -2", logs)
	}
}

func TestCommitSaleIsAllOrNothing(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	// Second line exceeds bread stock of 30; the milk line must not be applied.
	sale := testSale([]domain.SaleItem{
		{ProductID: "p1", ProductName: "Fresh Milk 2L", Quantity: 2, UnitPriceCents: 3499, TotalPriceCents: 6998},
		{ProductID: "p2", ProductName: "White Bread", Quantity: 31, UnitPriceCents: 1850, TotalPriceCents: 57350},
	}, domain.PaymentCash)
	sale.CashReceivedCents = 100000

	_, err := s.CommitSale(ctx, sale, true)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if !strings.Contains(err.Error(), "White Bread") {
		t.Fatalf("error should name the offending product, got %q", err)
	}

	milk, _ := s.GetProductByID(ctx, "p1")
	if milk.Stock != 50 {
		t.Fatalf("milk stock = %d after failed commit, want 50", milk.Stock)
	}
	sales, _ := s.ListSales(ctx, time.Time{}, time.Time{})
	if len(sales) != 0 {
		t.Fatalf("ledger has %d sales after failed commit, want 0", len(sales))
	}
}

func TestCommitSaleRejectsShortCash(t *testing.T) {
	s := NewSeeded()

	sale := testSale([]domain.SaleItem{
		{ProductID: "p3", ProductName: "Coca-Cola 500ml", Quantity: 1, UnitPriceCents: 1400, TotalPriceCents: 1400},
	}, domain.PaymentCash)
	sale.CashReceivedCents = sale.TotalCents - 1

	_, err := s.CommitSale(context.Background(), sale, true)
	if !errors.Is(err, store.ErrInsufficientCash) {
		t.Fatalf("err = %v, want ErrInsufficientCash", err)
	}
}

func TestCommitSaleRejectsTamperedTotals(t *testing.T) {
	s := NewSeeded()

	sale := testSale([]domain.SaleItem{
		{ProductID: "p3", ProductName: "Coca-Cola 500ml", Quantity: 1, UnitPriceCents: 1400, TotalPriceCents: 1400},
	}, domain.PaymentCash)
	sale.TotalCents += 100

	_, err := s.CommitSale(context.Background(), sale, true)
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("err = %v, want ErrInvalidSale", err)
	}
}

func TestCommitSaleUpdatesCustomerSpend(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale([]domain.SaleItem{
		{ProductID: "p2", ProductName: "White Bread", Quantity: 1, UnitPriceCents: 1850, TotalPriceCents: 1850},
	}, domain.PaymentCard)
	sale.CustomerID = "c1"

	committed, err := s.CommitSale(ctx, sale, true)
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	customer, err := s.GetCustomerByID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCustomerByID: %v", err)
	}
	if customer.TotalSpentCents != committed.TotalCents {
		t.Fatalf("customer spend = %d, want %d", customer.TotalSpentCents, committed.TotalCents)
	}
}

func TestCommitSaleOfflineQueuesReceipt(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale([]domain.SaleItem{
		{ProductID: "p3", ProductName: "Coca-Cola 500ml", Quantity: 1, UnitPriceCents: 1400, TotalPriceCents: 1400},
	}, domain.PaymentCash)
	sale.CashReceivedCents = 2000

	committed, err := s.CommitSale(ctx, sale, false)
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	queued, _ := s.ListQueuedReceipts(ctx)
	if len(queued) != 1 || queued[0].ID != committed.ID || queued[0].Type != domain.ReceiptRetail {
		t.Fatalf("queued receipts = %+v, want one RETAIL entry for %s", queued, committed.ID)
	}

	if err := s.AcknowledgeQueuedReceipt(ctx, domain.ReceiptRetail, committed.ID); err != nil {
		t.Fatalf("AcknowledgeQueuedReceipt: %v", err)
	}
	queued, _ = s.ListQueuedReceipts(ctx)
	if len(queued) != 0 {
		t.Fatalf("queued receipts after ack = %+v, want empty", queued)
	}
	if err := s.AcknowledgeQueuedReceipt(ctx, domain.ReceiptRetail, committed.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second ack err = %v, want ErrNotFound", err)
	}
}

func TestVoidSaleRestoresStockAndSpend(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale([]domain.SaleItem{
		{ProductID: "p1", ProductName: "Fresh Milk 2L", Quantity: 3, UnitPriceCents: 3499, TotalPriceCents: 10497},
	}, domain.PaymentCard)
	sale.CustomerID = "c1"

	committed, err := s.CommitSale(ctx, sale, false)
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	voided, err := s.VoidSale(ctx, committed.ID, "customer changed mind", "admin", time.Now().UTC())
	if err != nil {
		t.Fatalf("VoidSale: %v", err)
	}
	if voided.ID != committed.ID {
		t.Fatalf("voided ID = %s, want %s", voided.ID, committed.ID)
	}

	milk, _ := s.GetProductByID(ctx, "p1")
	if milk.Stock != 50 {
		t.Fatalf("milk stock = %d after void, want 50", milk.Stock)
	}
	customer, _ := s.GetCustomerByID(ctx, "c1")
	if customer.TotalSpentCents != 0 {
		t.Fatalf("customer spend = %d after void, want 0", customer.TotalSpentCents)
	}
	if _, err := s.GetSaleByID(ctx, committed.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetSaleByID after void err = %v, want ErrNotFound", err)
	}
	queued, _ := s.ListQueuedReceipts(ctx)
	if len(queued) != 0 {
		t.Fatalf("void left queued receipts %+v", queued)
	}
}

func TestCommitFlashSaleDeductsWalletOnly(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	before, _ := s.FlashWalletBalance(ctx)

	tx := domain.FlashTransaction{
		Reference:     "FLS-1",
		Type:          domain.FlashAirtime,
		Provider:      "Vodacom",
		AmountCents:   5000,
		CustomerPhone: "0821234567",
		Status:        domain.FlashStatusSuccess,
	}
	committed, err := s.CommitFlashSale(ctx, tx, true)
	if err != nil {
		t.Fatalf("CommitFlashSale: %v", err)
	}
	if committed.ID == "" {
		t.Fatal("expected a generated transaction ID")
	}

	after, _ := s.FlashWalletBalance(ctx)
	if after != before-5000 {
		t.Fatalf("wallet = %d, want %d", after, before-5000)
	}

	milk, _ := s.GetProductByID(ctx, "p1")
	if milk.Stock != 50 {
		t.Fatal("flash sale must not touch retail stock")
	}
}

func TestCommitFlashSaleOfflineQueuesReceipt(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	tx := domain.FlashTransaction{
		Reference:   "FLS-2",
		Type:        domain.FlashElectricity,
		Provider:    "Eskom",
		AmountCents: 10000,
		Token:       "1234 5678 9012",
		Status:      domain.FlashStatusSuccess,
	}
	committed, err := s.CommitFlashSale(ctx, tx, false)
	if err != nil {
		t.Fatalf("CommitFlashSale: %v", err)
	}

	queued, _ := s.ListQueuedReceipts(ctx)
	if len(queued) != 1 || queued[0].Type != domain.ReceiptFlash || queued[0].ID != committed.ID {
		t.Fatalf("queued receipts = %+v, want one FLASH entry for %s", queued, committed.ID)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale([]domain.SaleItem{
		{ProductID: "p2", ProductName: "White Bread", Quantity: 2, UnitPriceCents: 1850, TotalPriceCents: 3700},
	}, domain.PaymentEFT)
	if _, err := s.CommitSale(ctx, sale, false); err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	state, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored := New()
	if err := restored.Restore(ctx, state); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	bread, err := restored.GetProductByID(ctx, "p2")
	if err != nil {
		t.Fatalf("GetProductByID after restore: %v", err)
	}
	if bread.Stock != 28 {
		t.Fatalf("restored bread stock = %d, want 28", bread.Stock)
	}
	sales, _ := restored.ListSales(ctx, time.Time{}, time.Time{})
	if len(sales) != 1 {
		t.Fatalf("restored ledger has %d sales, want 1", len(sales))
	}
	wallet, _ := restored.FlashWalletBalance(ctx)
	if wallet != 450075 {
		t.Fatalf("restored wallet = %d, want 450075", wallet)
	}
	queued, _ := restored.ListQueuedReceipts(ctx)
	if len(queued) != 1 {
		t.Fatalf("restored queued receipts = %+v, want 1", queued)
	}
}

func TestSnapshotIsDetachedFromStore(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	state, _ := s.Snapshot(ctx)
	state.Products[0].Stock = 0

	milk, _ := s.GetProductByID(ctx, "p1")
	if milk.Stock != 50 {
		t.Fatal("mutating a snapshot must not affect the store")
	}
}

func TestMutationHookReceivesSnapshot(t *testing.T) {
	s := NewSeeded()
	var got []domain.AppState
	s.OnMutate(func(state domain.AppState) { got = append(got, state) })

	sale := testSale([]domain.SaleItem{
		{ProductID: "p3", ProductName: "Coca-Cola 500ml", Quantity: 1, UnitPriceCents: 1400, TotalPriceCents: 1400},
	}, domain.PaymentCash)
	sale.CashReceivedCents = 2000
	if _, err := s.CommitSale(context.Background(), sale, true); err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(got))
	}
	if len(got[0].Sales) != 1 {
		t.Fatalf("hook snapshot has %d sales, want 1", len(got[0].Sales))
	}
}
