package store

import (
	"context"
	"errors"
	"time"

	"mzansipos/terminal/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientCash  = errors.New("insufficient cash tendered")
	ErrInvalidSale       = errors.New("invalid sale")
	ErrNotAuthorized     = errors.New("supervisor PIN rejected; contact your system administrator")
)

// Repository owns all durable terminal state: the catalog, the append-only
// sale ledger, the flash wallet and the offline receipt queue. Every
// implementation must make CommitSale, VoidSale and CommitFlashSale
// all-or-nothing: an error leaves products, ledgers and aggregates untouched.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	// CommitSale re-validates stock for every line under the same lock that
	// performs the deductions, appends the sale, updates the attributed
	// customer's spend aggregate and, when online is false, enqueues a
	// QueuedReceipt referencing the new sale.
	CommitSale(ctx context.Context, sale domain.Sale, online bool) (*domain.Sale, error)
	// VoidSale is the compensating transaction: it removes the sale from the
	// ledger, restores stock per line and rolls back the customer aggregate.
	VoidSale(ctx context.Context, saleID string, reason string, userID string, at time.Time) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	CommitFlashSale(ctx context.Context, tx domain.FlashTransaction, online bool) (*domain.FlashTransaction, error)
	GetFlashTransactionByID(ctx context.Context, id string) (*domain.FlashTransaction, error)
	ListFlashTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.FlashTransaction, error)
	FlashWalletBalance(ctx context.Context) (int64, error)
	SetFlashWalletBalance(ctx context.Context, cents int64) error

	ListQueuedReceipts(ctx context.Context) ([]domain.QueuedReceipt, error)
	AcknowledgeQueuedReceipt(ctx context.Context, receiptType string, id string) error

	ListInventoryLogs(ctx context.Context, productID string, limit int) ([]domain.InventoryLog, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	Snapshot(ctx context.Context) (domain.AppState, error)
	Restore(ctx context.Context, state domain.AppState) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
