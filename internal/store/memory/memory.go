package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/pricing"
	"mzansipos/terminal/internal/store"
	"mzansipos/terminal/internal/xid"
)

// Store is the in-memory state owner for a single terminal. All mutation goes
// through its lock, which is what makes the commit paths atomic: every
// validation and every write for one sale happens inside one critical
// section, and an error return means nothing was written.
type Store struct {
	mu                sync.RWMutex
	products          map[string]domain.Product
	productOrder      []string
	customersByID     map[string]domain.Customer
	customerOrder     []string
	sales             []domain.Sale
	salesByID         map[string]*domain.Sale
	inventoryLogs     []domain.InventoryLog
	flashTransactions []domain.FlashTransaction
	flashByID         map[string]*domain.FlashTransaction
	flashWalletCents  int64
	currency          string
	queuedReceipts    []domain.QueuedReceipt
	auditLogs         []domain.AuditLog
	usersByUsername   map[string]domain.UserAccount

	// afterMutate is invoked with a fresh snapshot after every successful
	// mutation, outside the lock. Used to trigger fire-and-forget persistence.
	afterMutate func(domain.AppState)
}

// seedUsers builds the initial user accounts for dev/demo mode. Credentials
// are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD environment
// variables; hardcoded dev defaults are used with a warning when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with the demo catalog, a walk-in
// customer and an opening flash wallet float.
func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "p1", Name: "Fresh Milk 2L", Category: "Dairy", Barcode: "6001234567890", PriceCents: 3499, CostPriceCents: 2800, Stock: 50, LowStockThreshold: 10},
		{ID: "p2", Name: "White Bread", Category: "Bakery", Barcode: "6000987654321", PriceCents: 1850, CostPriceCents: 1400, Stock: 30, LowStockThreshold: 5},
		{ID: "p3", Name: "Coca-Cola 500ml", Category: "Beverages", Barcode: "5449000000996", PriceCents: 1400, CostPriceCents: 1000, Stock: 100, LowStockThreshold: 20},
	}
	customers := []domain.Customer{
		{ID: "c1", Name: "John Doe", Email: "john@example.com", Phone: "0821234567"},
	}

	s := New()
	for _, p := range products {
		s.products[p.ID] = p
		s.productOrder = append(s.productOrder, p.ID)
	}
	for _, c := range customers {
		s.customersByID[c.ID] = c
		s.customerOrder = append(s.customerOrder, c.ID)
	}
	s.flashWalletCents = 450075
	s.usersByUsername = seedUsers()
	return s
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		customersByID:   make(map[string]domain.Customer),
		salesByID:       make(map[string]*domain.Sale),
		flashByID:       make(map[string]*domain.FlashTransaction),
		usersByUsername: make(map[string]domain.UserAccount),
		currency:        "ZAR",
	}
}

// OnMutate registers the persistence hook. Must be called before the store is
// shared across goroutines.
func (s *Store) OnMutate(fn func(domain.AppState)) {
	s.afterMutate = fn
}

func (s *Store) notify() {
	if s.afterMutate == nil {
		return
	}
	s.mu.RLock()
	state := s.snapshotLocked()
	s.mu.RUnlock()
	s.afterMutate(state)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		out = append(out, s.products[id])
	}
	return out, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.productOrder {
		if s.products[id].Barcode == barcode {
			p := s.products[id]
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	if product.ID == "" {
		product.ID = xid.New("p")
	}
	if _, exists := s.products[product.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: product %s already exists", store.ErrInvalidSale, product.ID)
	}
	s.products[product.ID] = product
	s.productOrder = append(s.productOrder, product.ID)
	s.mu.Unlock()

	s.notify()
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	existing, ok := s.products[product.ID]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	// Stock is owned by the commit/void paths; a catalog update cannot touch it.
	product.Stock = existing.Stock
	s.products[product.ID] = product
	s.mu.Unlock()

	s.notify()
	return &product, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customerOrder))
	for _, id := range s.customerOrder {
		out = append(out, s.customersByID[id])
	}
	return out, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	if customer.ID == "" {
		customer.ID = xid.New("c")
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: customer %s already exists", store.ErrInvalidSale, customer.ID)
	}
	s.customersByID[customer.ID] = customer
	s.customerOrder = append(s.customerOrder, customer.ID)
	s.mu.Unlock()

	s.notify()
	return &customer, nil
}

// CommitSale applies the whole sale or none of it. Stock for every line is
// re-validated against live counts inside the lock; the first failing line
// aborts the commit with the offending product named and nothing written.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale, online bool) (*domain.Sale, error) {
	s.mu.Lock()

	if len(sale.Items) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: empty cart", store.ErrInvalidSale)
	}
	if !domain.IsPaymentMethod(sale.PaymentMethod) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidSale, sale.PaymentMethod)
	}
	totals := domain.Totals{
		SubtotalCents: sale.SubtotalCents,
		DiscountCents: sale.DiscountCents,
		TaxCents:      sale.TaxCents,
		TotalCents:    sale.TotalCents,
	}
	if !pricing.Consistent(totals) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: totals are not internally consistent", store.ErrInvalidSale)
	}
	if sale.PaymentMethod == domain.PaymentCash && sale.CashReceivedCents < sale.TotalCents {
		s.mu.Unlock()
		return nil, store.ErrInsufficientCash
	}

	// Validate everything before mutating anything.
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: line quantity below one", store.ErrInvalidSale)
		}
		product, exists := s.products[item.ProductID]
		if !exists {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		if product.Stock < item.Quantity {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
		}
	}
	if sale.CustomerID != "" {
		if _, exists := s.customersByID[sale.CustomerID]; !exists {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now().UTC()
	}
	if sale.Currency == "" {
		sale.Currency = s.currency
	}

	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		product.Stock -= item.Quantity
		s.products[item.ProductID] = product
		s.inventoryLogs = append(s.inventoryLogs, domain.InventoryLog{
			ID:        xid.New("inv"),
			ProductID: item.ProductID,
			Change:    -item.Quantity,
			Reason:    "sale " + sale.ID,
			Timestamp: sale.Timestamp,
			UserID:    sale.CashierID,
		})
	}

	if sale.CustomerID != "" {
		customer := s.customersByID[sale.CustomerID]
		customer.TotalSpentCents += sale.TotalCents
		s.customersByID[sale.CustomerID] = customer
	}

	if !online {
		s.queuedReceipts = append(s.queuedReceipts, domain.QueuedReceipt{
			Type:     domain.ReceiptRetail,
			ID:       sale.ID,
			QueuedAt: sale.Timestamp,
		})
	}

	saved := cloneSale(&sale)
	s.sales = append(s.sales, *saved)
	s.salesByID[sale.ID] = saved
	s.mu.Unlock()

	s.notify()
	return cloneSale(saved), nil
}

// VoidSale removes a committed sale and compensates its effects: stock is
// restored per line and the attributed customer's spend aggregate is rolled
// back. Any queued receipt for the sale is dropped.
func (s *Store) VoidSale(_ context.Context, saleID string, reason string, userID string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}

	for _, item := range sale.Items {
		if product, exists := s.products[item.ProductID]; exists {
			product.Stock += item.Quantity
			s.products[item.ProductID] = product
		}
		s.inventoryLogs = append(s.inventoryLogs, domain.InventoryLog{
			ID:        xid.New("inv"),
			ProductID: item.ProductID,
			Change:    item.Quantity,
			Reason:    fmt.Sprintf("void %s: %s", sale.ID, reason),
			Timestamp: at,
			UserID:    userID,
		})
	}

	if sale.CustomerID != "" {
		if customer, exists := s.customersByID[sale.CustomerID]; exists {
			customer.TotalSpentCents -= sale.TotalCents
			s.customersByID[sale.CustomerID] = customer
		}
	}

	delete(s.salesByID, saleID)
	for i := range s.sales {
		if s.sales[i].ID == saleID {
			s.sales = append(s.sales[:i], s.sales[i+1:]...)
			break
		}
	}
	s.removeQueuedReceiptLocked(domain.ReceiptRetail, saleID)

	voided := cloneSale(sale)
	s.mu.Unlock()

	s.notify()
	return voided, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for i := range s.sales {
		if inRange(s.sales[i].Timestamp, from, to) {
			out = append(out, *cloneSale(&s.sales[i]))
		}
	}
	return out, nil
}

// CommitFlashSale appends a successful VAS transaction and deducts the wallet
// float in one step. The retail stock ledger is never touched by this path.
func (s *Store) CommitFlashSale(_ context.Context, tx domain.FlashTransaction, online bool) (*domain.FlashTransaction, error) {
	s.mu.Lock()

	if tx.AmountCents < 1 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: amount below one cent", store.ErrInvalidSale)
	}
	if !domain.IsFlashType(tx.Type) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown VAS type %q", store.ErrInvalidSale, tx.Type)
	}
	if tx.Status != domain.FlashStatusSuccess {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: only successful provider results are committed", store.ErrInvalidSale)
	}

	if tx.ID == "" {
		tx.ID = xid.New("vas")
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	s.flashWalletCents -= tx.AmountCents
	if !online {
		s.queuedReceipts = append(s.queuedReceipts, domain.QueuedReceipt{
			Type:     domain.ReceiptFlash,
			ID:       tx.ID,
			QueuedAt: tx.Timestamp,
		})
	}

	saved := tx
	s.flashTransactions = append(s.flashTransactions, saved)
	s.flashByID[tx.ID] = &s.flashTransactions[len(s.flashTransactions)-1]
	s.mu.Unlock()

	s.notify()
	return &saved, nil
}

func (s *Store) GetFlashTransactionByID(_ context.Context, id string) (*domain.FlashTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.flashByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *tx
	return &out, nil
}

func (s *Store) ListFlashTransactions(_ context.Context, from time.Time, to time.Time) ([]domain.FlashTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FlashTransaction, 0, len(s.flashTransactions))
	for _, tx := range s.flashTransactions {
		if inRange(tx.Timestamp, from, to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) FlashWalletBalance(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flashWalletCents, nil
}

func (s *Store) SetFlashWalletBalance(_ context.Context, cents int64) error {
	s.mu.Lock()
	s.flashWalletCents = cents
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) ListQueuedReceipts(_ context.Context) ([]domain.QueuedReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.QueuedReceipt, len(s.queuedReceipts))
	copy(out, s.queuedReceipts)
	return out, nil
}

func (s *Store) AcknowledgeQueuedReceipt(_ context.Context, receiptType string, id string) error {
	s.mu.Lock()
	removed := s.removeQueuedReceiptLocked(receiptType, id)
	s.mu.Unlock()

	if !removed {
		return store.ErrNotFound
	}
	s.notify()
	return nil
}

func (s *Store) removeQueuedReceiptLocked(receiptType string, id string) bool {
	for i, r := range s.queuedReceipts {
		if r.Type == receiptType && r.ID == id {
			s.queuedReceipts = append(s.queuedReceipts[:i], s.queuedReceipts[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) ListInventoryLogs(_ context.Context, productID string, limit int) ([]domain.InventoryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	out := make([]domain.InventoryLog, 0, limit)
	for i := len(s.inventoryLogs) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.inventoryLogs[i]
		if productID != "" && entry.ProductID != productID {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	out := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.auditLogs[i]
		if inRange(entry.CreatedAt, from, to) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) Snapshot(_ context.Context) (domain.AppState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *Store) snapshotLocked() domain.AppState {
	state := domain.AppState{
		Products:          make([]domain.Product, 0, len(s.productOrder)),
		Customers:         make([]domain.Customer, 0, len(s.customerOrder)),
		Sales:             make([]domain.Sale, 0, len(s.sales)),
		InventoryLogs:     append([]domain.InventoryLog(nil), s.inventoryLogs...),
		FlashTransactions: append([]domain.FlashTransaction(nil), s.flashTransactions...),
		FlashWalletCents:  s.flashWalletCents,
		Currency:          s.currency,
		QueuedReceipts:    append([]domain.QueuedReceipt(nil), s.queuedReceipts...),
		AuditLogs:         append([]domain.AuditLog(nil), s.auditLogs...),
	}
	for _, id := range s.productOrder {
		state.Products = append(state.Products, s.products[id])
	}
	for _, id := range s.customerOrder {
		state.Customers = append(state.Customers, s.customersByID[id])
	}
	for i := range s.sales {
		state.Sales = append(state.Sales, *cloneSale(&s.sales[i]))
	}
	usernames := make([]string, 0, len(s.usersByUsername))
	for username := range s.usersByUsername {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)
	for _, username := range usernames {
		state.Users = append(state.Users, s.usersByUsername[username])
	}
	return state
}

// Restore replaces the store's contents with a previously persisted snapshot.
// Seeded users are kept when the snapshot carries none, so a state file from
// an older build does not lock everyone out.
func (s *Store) Restore(_ context.Context, state domain.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]domain.Product, len(state.Products))
	s.productOrder = s.productOrder[:0]
	for _, p := range state.Products {
		s.products[p.ID] = p
		s.productOrder = append(s.productOrder, p.ID)
	}

	s.customersByID = make(map[string]domain.Customer, len(state.Customers))
	s.customerOrder = s.customerOrder[:0]
	for _, c := range state.Customers {
		s.customersByID[c.ID] = c
		s.customerOrder = append(s.customerOrder, c.ID)
	}

	s.sales = make([]domain.Sale, 0, len(state.Sales))
	s.salesByID = make(map[string]*domain.Sale, len(state.Sales))
	for i := range state.Sales {
		saved := cloneSale(&state.Sales[i])
		s.sales = append(s.sales, *saved)
		s.salesByID[saved.ID] = saved
	}

	s.inventoryLogs = append([]domain.InventoryLog(nil), state.InventoryLogs...)

	s.flashTransactions = append([]domain.FlashTransaction(nil), state.FlashTransactions...)
	s.flashByID = make(map[string]*domain.FlashTransaction, len(s.flashTransactions))
	for i := range s.flashTransactions {
		s.flashByID[s.flashTransactions[i].ID] = &s.flashTransactions[i]
	}

	s.flashWalletCents = state.FlashWalletCents
	if strings.TrimSpace(state.Currency) != "" {
		s.currency = state.Currency
	}
	s.queuedReceipts = append([]domain.QueuedReceipt(nil), state.QueuedReceipts...)
	s.auditLogs = append([]domain.AuditLog(nil), state.AuditLogs...)

	if len(state.Users) > 0 {
		s.usersByUsername = make(map[string]domain.UserAccount, len(state.Users))
		for _, u := range state.Users {
			s.usersByUsername[u.Username] = u
		}
	}

	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		s.mu.Unlock()
		return fmt.Errorf("user %s already exists", user.Username)
	}
	s.usersByUsername[user.Username] = user
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	user, ok := s.usersByUsername[username]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	s.mu.Unlock()

	s.notify()
	return nil
}

func cloneSale(sale *domain.Sale) *domain.Sale {
	out := *sale
	out.Items = make([]domain.SaleItem, len(sale.Items))
	copy(out.Items, sale.Items)
	return &out
}

func inRange(ts time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && !ts.Before(to) {
		return false
	}
	return true
}
