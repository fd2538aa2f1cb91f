// Package service holds the back-office operations that sit beside the till
// flow: catalog and customer management, voids, reports, receipts and the
// offline receipt queue.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"mzansipos/terminal/internal/authgate"
	"mzansipos/terminal/internal/connectivity"
	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/flash"
	"mzansipos/terminal/internal/receipt"
	"mzansipos/terminal/internal/store"
	"mzansipos/terminal/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	gate       *authgate.Gate
	provider   flash.Provider
	classifier connectivity.Classifier
	currency   string
}

func New(repo store.Repository, gate *authgate.Gate, provider flash.Provider, classifier connectivity.Classifier, currency string) *Service {
	if currency == "" {
		currency = "ZAR"
	}
	return &Service{
		repo:       repo,
		gate:       gate,
		provider:   provider,
		classifier: classifier,
		currency:   currency,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) LookupBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, fmt.Errorf("%w: empty barcode", store.ErrInvalidSale)
	}
	p, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Barcode = strings.TrimSpace(req.Barcode)

	if req.Name == "" || req.Category == "" {
		return domain.Product{}, fmt.Errorf("%w: name and category are required", store.ErrInvalidSale)
	}
	if req.PriceCents < 1 || req.CostPriceCents < 0 || req.InitialStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: invalid product pricing or stock", store.ErrInvalidSale)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:              req.Name,
		Category:          req.Category,
		Barcode:           req.Barcode,
		PriceCents:        req.PriceCents,
		CostPriceCents:    req.CostPriceCents,
		Stock:             req.InitialStock,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.PriceCents != nil {
		updated.PriceCents = *req.PriceCents
	}
	if req.CostPriceCents != nil {
		updated.CostPriceCents = *req.CostPriceCents
	}
	if req.LowStockThreshold != nil {
		updated.LowStockThreshold = *req.LowStockThreshold
	}
	if updated.Name == "" || updated.PriceCents < 1 {
		return domain.Product{}, fmt.Errorf("%w: invalid product update", store.ErrInvalidSale)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("name=%s,price=%d", saved.Name, saved.PriceCents))
	return *saved, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidSale)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  req.Name,
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, from, to)
}

// VoidSale reverses a committed sale. It is supervisor-gated like a commit
// and restricted to admins.
func (s *Service) VoidSale(ctx context.Context, saleID string, req domain.VoidSaleRequest) (domain.VoidSaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.VoidSaleResponse{}, fmt.Errorf("admin role required")
	}
	if err := s.gate.Authorize(req.SupervisorPIN); err != nil {
		return domain.VoidSaleResponse{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.VoidSaleResponse{}, fmt.Errorf("%w: a void reason is required", store.ErrInvalidSale)
	}

	at := time.Now().UTC()
	voided, err := s.repo.VoidSale(ctx, saleID, reason, actor.Username, at)
	if err != nil {
		return domain.VoidSaleResponse{}, err
	}

	s.logAudit(ctx, "sale_void", "sale", voided.ID, reason)
	return domain.VoidSaleResponse{
		SaleID:   voided.ID,
		VoidedAt: at.Format(time.RFC3339),
	}, nil
}

func (s *Service) ListFlashTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.FlashTransaction, error) {
	return s.repo.ListFlashTransactions(ctx, from, to)
}

// WalletBalance reports the locally tracked flash float.
func (s *Service) WalletBalance(ctx context.Context) (domain.WalletBalanceResponse, error) {
	balance, err := s.repo.FlashWalletBalance(ctx)
	if err != nil {
		return domain.WalletBalanceResponse{}, err
	}
	return domain.WalletBalanceResponse{BalanceCents: balance, Currency: s.currency}, nil
}

// RefreshWalletBalance re-reads the float from the provider and overwrites
// the local figure. The provider's number wins.
func (s *Service) RefreshWalletBalance(ctx context.Context) (domain.WalletBalanceResponse, error) {
	balance, err := s.provider.CheckBalance(ctx)
	if err != nil {
		return domain.WalletBalanceResponse{}, err
	}
	if err := s.repo.SetFlashWalletBalance(ctx, balance); err != nil {
		return domain.WalletBalanceResponse{}, err
	}

	s.logAudit(ctx, "wallet_refresh", "flash_wallet", "wallet", fmt.Sprintf("balance=%d", balance))
	return domain.WalletBalanceResponse{BalanceCents: balance, Currency: s.currency}, nil
}

func (s *Service) ListQueuedReceipts(ctx context.Context) ([]domain.QueuedReceipt, error) {
	return s.repo.ListQueuedReceipts(ctx)
}

func (s *Service) AcknowledgeQueuedReceipt(ctx context.Context, req domain.AckReceiptRequest) error {
	if req.Type != domain.ReceiptRetail && req.Type != domain.ReceiptFlash {
		return fmt.Errorf("%w: unknown receipt type %q", store.ErrInvalidSale, req.Type)
	}
	if err := s.repo.AcknowledgeQueuedReceipt(ctx, req.Type, req.ID); err != nil {
		return err
	}

	s.logAudit(ctx, "receipt_ack", "queued_receipt", req.ID, "type="+req.Type)
	return nil
}

// ConnectivityStatus pairs the live classification with the backlog counts
// shown on the status bar.
func (s *Service) ConnectivityStatus(ctx context.Context) (domain.ConnectivityStatus, error) {
	queued, err := s.repo.ListQueuedReceipts(ctx)
	if err != nil {
		return domain.ConnectivityStatus{}, err
	}

	status := domain.ConnectivityStatus{
		Online:         s.classifier.Online(),
		QueuedReceipts: len(queued),
	}
	for _, r := range queued {
		switch r.Type {
		case domain.ReceiptRetail:
			status.PendingRetail++
		case domain.ReceiptFlash:
			status.PendingFlash++
		}
	}
	return status, nil
}

// RenderReceipt rebuilds the slip for a committed sale or VAS transaction.
func (s *Service) RenderReceipt(ctx context.Context, req domain.ReceiptRenderRequest) (domain.ReceiptArtifact, error) {
	var (
		preview string
		escpos  []byte
	)
	switch req.Type {
	case domain.ReceiptRetail:
		sale, err := s.repo.GetSaleByID(ctx, req.ID)
		if err != nil {
			return domain.ReceiptArtifact{}, err
		}
		preview, escpos = receipt.ForSale(sale)
	case domain.ReceiptFlash:
		tx, err := s.repo.GetFlashTransactionByID(ctx, req.ID)
		if err != nil {
			return domain.ReceiptArtifact{}, err
		}
		preview, escpos = receipt.ForFlash(tx)
	default:
		return domain.ReceiptArtifact{}, fmt.Errorf("%w: unknown receipt type %q", store.ErrInvalidSale, req.Type)
	}

	return domain.ReceiptArtifact{
		ID:           req.ID,
		PreviewText:  preview,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		FileName:     fmt.Sprintf("receipt-%s.bin", req.ID),
	}, nil
}

// DailyReport aggregates the day's retail and VAS trade.
func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.DailyReport{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidSale)
		}
		day = parsed.UTC()
	}
	from := day
	to := from.Add(24 * time.Hour)

	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	flashSales, err := s.repo.ListFlashTransactions(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report := domain.DailyReport{Date: from.Format("2006-01-02")}
	byPayment := map[string]*domain.DailyReportPayment{}
	for _, sale := range sales {
		report.Sales++
		report.GrossSalesCents += sale.TotalCents
		report.DiscountCents += sale.DiscountCents
		report.TaxCents += sale.TaxCents

		entry, ok := byPayment[sale.PaymentMethod]
		if !ok {
			entry = &domain.DailyReportPayment{PaymentMethod: sale.PaymentMethod}
			byPayment[sale.PaymentMethod] = entry
		}
		entry.Sales++
		entry.TotalCents += sale.TotalCents
	}
	for _, tx := range flashSales {
		report.FlashSales++
		report.FlashAmountCents += tx.AmountCents
	}

	methods := make([]string, 0, len(byPayment))
	for m := range byPayment {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		report.ByPayment = append(report.ByPayment, *byPayment[m])
	}
	return report, nil
}

// LowStockProducts lists catalog items at or below their reorder threshold.
func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0)
	for _, p := range products {
		if p.Stock <= p.LowStockThreshold {
			low = append(low, p)
		}
	}
	return low, nil
}

func (s *Service) ListInventoryLogs(ctx context.Context, productID string, limit int) ([]domain.InventoryLog, error) {
	return s.repo.ListInventoryLogs(ctx, productID, limit)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidSale)
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}
