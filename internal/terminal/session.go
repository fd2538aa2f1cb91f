// Package terminal drives one till's sale flow: building the cart, taking
// tender, passing the supervisor gate and handing the finished sale to the
// committer. One Session maps to one physical till.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mzansipos/terminal/internal/authgate"
	"mzansipos/terminal/internal/cardpay"
	"mzansipos/terminal/internal/cart"
	"mzansipos/terminal/internal/connectivity"
	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/flash"
	"mzansipos/terminal/internal/pricing"
	"mzansipos/terminal/internal/store"
	"mzansipos/terminal/internal/xid"
)

// ErrCommitInFlight rejects a second checkout while one is already being
// finalized on this till.
var ErrCommitInFlight = errors.New("a checkout is already in progress on this terminal")

// Config carries the shared collaborators every session needs.
type Config struct {
	Repo       store.Repository
	Gate       *authgate.Gate
	Classifier connectivity.Classifier
	Card       cardpay.Terminal
	Flash      flash.Provider
	TaxRate    float64
	Currency   string
}

// Session is the mutable sale state of one till. All methods are safe for
// concurrent use; the commit paths additionally guard against overlapping
// checkouts with a dedicated in-flight flag so a slow card authorization
// cannot be double-submitted.
type Session struct {
	cfg        Config
	terminalID string

	mu                sync.Mutex
	cart              *cart.Cart
	cashierID         string
	customerID        string
	discountPercent   float64
	paymentMethod     string
	cashReceivedCents int64
	eftConfirmed      bool
	commitInFlight    bool
}

func NewSession(cfg Config, terminalID string) *Session {
	return &Session{
		cfg:           cfg,
		terminalID:    terminalID,
		cart:          cart.New(),
		paymentMethod: domain.PaymentCash,
	}
}

// SetCashier records who is operating the till. Attribution only.
func (s *Session) SetCashier(cashierID string) {
	s.mu.Lock()
	s.cashierID = cashierID
	s.mu.Unlock()
}

// AddProduct adds a catalog item to the cart by ID or, when the request
// carries one, by scanned barcode. The unit price is captured now.
func (s *Session) AddProduct(ctx context.Context, req domain.AddToCartRequest) (domain.CartView, error) {
	var (
		product *domain.Product
		err     error
	)
	if strings.TrimSpace(req.Barcode) != "" {
		product, err = s.cfg.Repo.GetProductByBarcode(ctx, req.Barcode)
	} else {
		product, err = s.cfg.Repo.GetProductByID(ctx, req.ProductID)
	}
	if err != nil {
		return domain.CartView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cart.Add(*product, req.Quantity); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

// SetQuantity adjusts one line against live stock; zero or less removes it.
func (s *Session) SetQuantity(ctx context.Context, productID string, qty int) (domain.CartView, error) {
	product, err := s.cfg.Repo.GetProductByID(ctx, productID)
	if err != nil {
		return domain.CartView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cart.SetQuantity(*product, qty); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

func (s *Session) RemoveLine(productID string) domain.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Remove(productID)
	return s.viewLocked()
}

// ClearCart empties the cart and resets discount, customer and tender state.
// Safe to call on an already empty cart.
func (s *Session) ClearCart() domain.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return s.viewLocked()
}

func (s *Session) resetLocked() {
	s.cart.Clear()
	s.customerID = ""
	s.discountPercent = 0
	s.paymentMethod = domain.PaymentCash
	s.cashReceivedCents = 0
	s.eftConfirmed = false
}

// AttachCustomer links the sale to a known customer for spend tracking.
func (s *Session) AttachCustomer(ctx context.Context, customerID string) (domain.CartView, error) {
	if strings.TrimSpace(customerID) == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.customerID = ""
		return s.viewLocked(), nil
	}

	if _, err := s.cfg.Repo.GetCustomerByID(ctx, customerID); err != nil {
		return domain.CartView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerID = customerID
	return s.viewLocked(), nil
}

// SetDiscountPercent applies a whole-cart percentage discount, clamped to
// the 0 to 100 range.
func (s *Session) SetDiscountPercent(percent float64) domain.CartView {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.discountPercent = percent
	return s.viewLocked()
}

// SelectPayment switches the tender type. Any partially captured tender
// (entered cash, an EFT confirmation) is discarded on switch.
func (s *Session) SelectPayment(method string) (domain.CartView, error) {
	if !domain.IsPaymentMethod(method) {
		return domain.CartView{}, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidSale, method)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentMethod != method {
		s.cashReceivedCents = 0
		s.eftConfirmed = false
	}
	s.paymentMethod = method
	return s.viewLocked(), nil
}

// EnterCash records the cash amount handed over by the customer.
func (s *Session) EnterCash(cents int64) (domain.CartView, error) {
	if cents < 0 {
		return domain.CartView{}, fmt.Errorf("%w: negative cash amount", store.ErrInvalidSale)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentMethod != domain.PaymentCash {
		return s.viewLocked(), fmt.Errorf("%w: cash entry requires the CASH tender", store.ErrInvalidSale)
	}
	s.cashReceivedCents = cents
	return s.viewLocked(), nil
}

// ConfirmEFT is the cashier's manual attestation that the customer's bank
// transfer went through. There is no automatic verification.
func (s *Session) ConfirmEFT() (domain.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentMethod != domain.PaymentEFT {
		return s.viewLocked(), fmt.Errorf("%w: EFT confirmation requires the EFT tender", store.ErrInvalidSale)
	}
	s.eftConfirmed = true
	return s.viewLocked(), nil
}

// EFTInstructions returns the bank details shown on the customer display,
// with a payment reference tied to this till.
func (s *Session) EFTInstructions() domain.EFTInstructions {
	return domain.EFTInstructions{
		BankName:      "First National Bank",
		AccountName:   "Mzansi POS (Pty) Ltd",
		AccountNumber: "62012345678",
		BranchCode:    "250655",
		Reference:     "POS-" + s.terminalID,
	}
}

// View reports the operator-facing cart state with recomputed totals.
func (s *Session) View() domain.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() domain.CartView {
	lines := s.cart.Lines()
	totals := pricing.Compute(lines, s.discountPercent, s.cfg.TaxRate)

	view := domain.CartView{
		Lines:             lines,
		Totals:            totals,
		DiscountPercent:   s.discountPercent,
		CustomerID:        s.customerID,
		PaymentMethod:     s.paymentMethod,
		CashReceivedCents: s.cashReceivedCents,
		EFTConfirmed:      s.eftConfirmed,
	}
	if s.paymentMethod == domain.PaymentCash {
		view.ChangeDueCents = pricing.ChangeDue(totals.TotalCents, s.cashReceivedCents)
	}
	view.ReadyForCheckout = s.readyLocked(totals) == nil
	return view
}

// readyLocked answers whether the cart could commit right now, ignoring the
// supervisor gate.
func (s *Session) readyLocked(totals domain.Totals) error {
	if s.cart.IsEmpty() {
		return fmt.Errorf("%w: empty cart", store.ErrInvalidSale)
	}
	switch s.paymentMethod {
	case domain.PaymentCash:
		if s.cashReceivedCents < totals.TotalCents {
			return store.ErrInsufficientCash
		}
	case domain.PaymentEFT:
		if !s.eftConfirmed {
			return fmt.Errorf("%w: EFT transfer not confirmed", store.ErrInvalidSale)
		}
	}
	return nil
}

// Checkout finalizes the current cart. The sequence is readiness check,
// supervisor gate, card authorization when paying by card, then the atomic
// commit. On any failure the cart and tender state survive untouched so the
// cashier can retry; on success the till resets for the next customer.
func (s *Session) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	s.mu.Lock()
	if s.commitInFlight {
		s.mu.Unlock()
		return domain.CheckoutResponse{}, ErrCommitInFlight
	}

	lines := s.cart.Lines()
	totals := pricing.Compute(lines, s.discountPercent, s.cfg.TaxRate)
	if err := s.readyLocked(totals); err != nil {
		s.mu.Unlock()
		return domain.CheckoutResponse{}, err
	}
	if err := s.cfg.Gate.Authorize(req.SupervisorPIN); err != nil {
		s.mu.Unlock()
		return domain.CheckoutResponse{}, err
	}

	method := s.paymentMethod
	cashReceived := s.cashReceivedCents
	customerID := s.customerID
	cashierID := s.cashierID

	s.commitInFlight = true
	s.mu.Unlock()

	// The in-flight flag is held across the card wait so nothing else can
	// start a second checkout meanwhile.
	var paymentRef string
	if method == domain.PaymentCard {
		ref, err := s.cfg.Card.Authorize(ctx, totals.TotalCents)
		if err != nil {
			s.clearInFlight()
			return domain.CheckoutResponse{}, fmt.Errorf("card authorization failed: %w", err)
		}
		paymentRef = ref
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		Timestamp:     time.Now().UTC(),
		Items:         lines,
		SubtotalCents: totals.SubtotalCents,
		DiscountCents: totals.DiscountCents,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.TotalCents,
		PaymentMethod: method,
		CashierID:     cashierID,
		CustomerID:    customerID,
		Currency:      s.cfg.Currency,
	}
	if method == domain.PaymentCash {
		sale.CashReceivedCents = cashReceived
		sale.ChangeCents = pricing.ChangeDue(totals.TotalCents, cashReceived)
	}
	if paymentRef != "" {
		sale.PaymentReference = paymentRef
	}

	online := s.cfg.Classifier.Online()
	committed, err := s.cfg.Repo.CommitSale(ctx, sale, online)
	if err != nil {
		s.clearInFlight()
		return domain.CheckoutResponse{}, err
	}

	s.mu.Lock()
	s.commitInFlight = false
	s.resetLocked()
	s.mu.Unlock()

	return domain.CheckoutResponse{Sale: *committed, Queued: !online}, nil
}

func (s *Session) clearInFlight() {
	s.mu.Lock()
	s.commitInFlight = false
	s.mu.Unlock()
}

// FlashSale sells a VAS product (airtime, data, electricity, voucher). The
// provider is called first; only a successful provider result reaches the
// committer, so a decline leaves the ledger and wallet exactly as they were.
// The retail cart is a separate flow and is never touched here.
func (s *Session) FlashSale(ctx context.Context, req domain.FlashSaleRequest) (domain.FlashSaleResponse, error) {
	if !domain.IsFlashType(req.Type) {
		return domain.FlashSaleResponse{}, fmt.Errorf("%w: unknown VAS type %q", store.ErrInvalidSale, req.Type)
	}
	if req.AmountCents < 1 {
		return domain.FlashSaleResponse{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidSale)
	}
	if req.CashReceivedCents > 0 && req.CashReceivedCents < req.AmountCents {
		return domain.FlashSaleResponse{}, store.ErrInsufficientCash
	}
	if err := s.cfg.Gate.Authorize(req.SupervisorPIN); err != nil {
		return domain.FlashSaleResponse{}, err
	}

	result, err := s.cfg.Flash.ProcessSale(ctx, req.Type, req.Provider, req.AmountCents, req.CustomerPhone)
	if err != nil {
		return domain.FlashSaleResponse{}, err
	}

	tx := domain.FlashTransaction{
		ID:            xid.New("vas"),
		Reference:     result.Reference,
		Type:          req.Type,
		Provider:      req.Provider,
		AmountCents:   req.AmountCents,
		CustomerPhone: req.CustomerPhone,
		Status:        domain.FlashStatusSuccess,
		Timestamp:     time.Now().UTC(),
	}
	if domain.FlashTypeHasToken(req.Type) {
		tx.Token = result.Token
	}
	if req.CashReceivedCents > 0 {
		tx.CashReceivedCents = req.CashReceivedCents
		tx.ChangeCents = pricing.ChangeDue(req.AmountCents, req.CashReceivedCents)
	}

	online := s.cfg.Classifier.Online()
	committed, err := s.cfg.Repo.CommitFlashSale(ctx, tx, online)
	if err != nil {
		return domain.FlashSaleResponse{}, err
	}
	return domain.FlashSaleResponse{Transaction: *committed, Queued: !online}, nil
}
