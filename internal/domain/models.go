package domain

import "time"

type Product struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	Barcode           string `json:"barcode"`
	PriceCents        int64  `json:"price_cents"`
	CostPriceCents    int64  `json:"cost_price_cents"`
	Stock             int    `json:"stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type ProductCreateRequest struct {
	Name              string `json:"name"`
	Category          string `json:"category"`
	Barcode           string `json:"barcode"`
	PriceCents        int64  `json:"price_cents"`
	CostPriceCents    int64  `json:"cost_price_cents"`
	InitialStock      int    `json:"initial_stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	Category          *string `json:"category,omitempty"`
	Barcode           *string `json:"barcode,omitempty"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	CostPriceCents    *int64  `json:"cost_price_cents,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
}

type Customer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	LoyaltyPoints   int    `json:"loyalty_points"`
	TotalSpentCents int64  `json:"total_spent_cents"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SaleItem is a cart line and, once committed, an immutable snapshot inside a
// Sale. UnitPriceCents is captured at add-time so later catalog price changes
// never affect an open cart or a committed sale.
type SaleItem struct {
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// Sale is append-only once committed. The only way it leaves the ledger is an
// explicit void, which is a compensating transaction rather than a mutation.
type Sale struct {
	ID                string     `json:"id"`
	Timestamp         time.Time  `json:"timestamp"`
	Items             []SaleItem `json:"items"`
	SubtotalCents     int64      `json:"subtotal_cents"`
	DiscountCents     int64      `json:"discount_cents"`
	TaxCents          int64      `json:"tax_cents"`
	TotalCents        int64      `json:"total_cents"`
	PaymentMethod     string     `json:"payment_method"`
	PaymentReference  string     `json:"payment_reference,omitempty"`
	CashierID         string     `json:"cashier_id"`
	CustomerID        string     `json:"customer_id,omitempty"`
	Currency          string     `json:"currency"`
	CashReceivedCents int64      `json:"cash_received_cents,omitempty"`
	ChangeCents       int64      `json:"change_cents,omitempty"`
}

type FlashTransaction struct {
	ID                string    `json:"id"`
	Reference         string    `json:"reference"`
	Type              string    `json:"type"`
	Provider          string    `json:"provider"`
	AmountCents       int64     `json:"amount_cents"`
	CustomerPhone     string    `json:"customer_phone"`
	Token             string    `json:"token,omitempty"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	CashReceivedCents int64     `json:"cash_received_cents,omitempty"`
	ChangeCents       int64     `json:"change_cents,omitempty"`
}

// QueuedReceipt marks a commit that happened while the terminal was offline
// and still awaits print/sync acknowledgement.
type QueuedReceipt struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	QueuedAt time.Time `json:"queued_at"`
}

type InventoryLog struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Change    int       `json:"change"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// AppState is the full persistable terminal state. The persistence
// collaborator stores and restores it as one opaque snapshot; its layout is
// irrelevant to commit correctness.
type AppState struct {
	Products          []Product          `json:"products"`
	Customers         []Customer         `json:"customers"`
	Sales             []Sale             `json:"sales"`
	InventoryLogs     []InventoryLog     `json:"inventory_logs"`
	FlashTransactions []FlashTransaction `json:"flash_transactions"`
	FlashWalletCents  int64              `json:"flash_wallet_cents"`
	Currency          string             `json:"currency"`
	QueuedReceipts    []QueuedReceipt    `json:"queued_receipts"`
	AuditLogs         []AuditLog         `json:"audit_logs"`
	Users             []UserAccount      `json:"users"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Barcode   string `json:"barcode,omitempty"`
	Quantity  int    `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type AttachCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

type SetDiscountRequest struct {
	Percent float64 `json:"percent"`
}

type SelectPaymentRequest struct {
	Method            string `json:"method"`
	CashReceivedCents int64  `json:"cash_received_cents"`
}

// CartView is the terminal's answer to "what does the operator see": the live
// lines, recomputed totals and the payment readiness of the current cart.
type CartView struct {
	Lines             []SaleItem `json:"lines"`
	Totals            Totals     `json:"totals"`
	DiscountPercent   float64    `json:"discount_percent"`
	CustomerID        string     `json:"customer_id,omitempty"`
	PaymentMethod     string     `json:"payment_method"`
	CashReceivedCents int64      `json:"cash_received_cents"`
	ChangeDueCents    int64      `json:"change_due_cents"`
	EFTConfirmed      bool       `json:"eft_confirmed"`
	ReadyForCheckout  bool       `json:"ready_for_checkout"`
}

type CheckoutRequest struct {
	SupervisorPIN string `json:"supervisor_pin"`
}

type CheckoutResponse struct {
	Sale   Sale `json:"sale"`
	Queued bool `json:"queued"`
}

// EFTInstructions are the static bank-transfer details shown to the customer.
// There is no automatic verification; the cashier confirms completion manually.
type EFTInstructions struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BranchCode    string `json:"branch_code"`
	Reference     string `json:"reference"`
}

type FlashSaleRequest struct {
	Type              string `json:"type"`
	Provider          string `json:"provider"`
	AmountCents       int64  `json:"amount_cents"`
	CustomerPhone     string `json:"customer_phone"`
	CashReceivedCents int64  `json:"cash_received_cents,omitempty"`
	SupervisorPIN     string `json:"supervisor_pin"`
}

type FlashSaleResponse struct {
	Transaction FlashTransaction `json:"transaction"`
	Queued      bool             `json:"queued"`
}

type WalletBalanceResponse struct {
	BalanceCents int64  `json:"balance_cents"`
	Currency     string `json:"currency"`
}

type VoidSaleRequest struct {
	Reason        string `json:"reason"`
	SupervisorPIN string `json:"supervisor_pin"`
}

type VoidSaleResponse struct {
	SaleID   string `json:"sale_id"`
	VoidedAt string `json:"voided_at"`
}

type AckReceiptRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ReceiptRenderRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ReceiptArtifact struct {
	ID           string `json:"id"`
	PreviewText  string `json:"preview_text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}

type DailyReportPayment struct {
	PaymentMethod string `json:"payment_method"`
	Sales         int64  `json:"sales"`
	TotalCents    int64  `json:"total_cents"`
}

type DailyReport struct {
	Date             string               `json:"date"`
	Sales            int64                `json:"sales"`
	GrossSalesCents  int64                `json:"gross_sales_cents"`
	DiscountCents    int64                `json:"discount_cents"`
	TaxCents         int64                `json:"tax_cents"`
	FlashSales       int64                `json:"flash_sales"`
	FlashAmountCents int64                `json:"flash_amount_cents"`
	ByPayment        []DailyReportPayment `json:"by_payment"`
}

type ConnectivityStatus struct {
	Online         bool `json:"online"`
	QueuedReceipts int  `json:"queued_receipts"`
	PendingRetail  int  `json:"pending_retail"`
	PendingFlash   int  `json:"pending_flash"`
}

const (
	PaymentCash = "CASH"
	PaymentCard = "CARD"
	PaymentEFT  = "EFT"
)

const (
	FlashAirtime     = "AIRTIME"
	FlashData        = "DATA"
	FlashElectricity = "ELECTRICITY"
	FlashVoucher     = "VOUCHER"
)

const (
	FlashStatusSuccess = "SUCCESS"
	FlashStatusFailed  = "FAILED"
	FlashStatusPending = "PENDING"
)

const (
	ReceiptRetail = "RETAIL"
	ReceiptFlash  = "FLASH"
)

// IsPaymentMethod reports whether m is one of the supported tender types.
func IsPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentCard || m == PaymentEFT
}

// IsFlashType reports whether t is a sellable VAS product type.
func IsFlashType(t string) bool {
	switch t {
	case FlashAirtime, FlashData, FlashElectricity, FlashVoucher:
		return true
	}
	return false
}

// FlashTypeHasToken reports whether a successful sale of this type carries a
// redeemable token (meter token or voucher PIN).
func FlashTypeHasToken(t string) bool {
	return t == FlashElectricity || t == FlashVoucher
}
