package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mzansipos/terminal/internal/authgate"
	"mzansipos/terminal/internal/cardpay"
	"mzansipos/terminal/internal/connectivity"
	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/flash"
	"mzansipos/terminal/internal/service"
	"mzansipos/terminal/internal/store/memory"
	"mzansipos/terminal/internal/terminal"
)

const testSupervisorPIN = "246810"

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestAPIWithMonitor(t, connectivity.NewMonitor(true))
}

func newTestAPIWithMonitor(t *testing.T, monitor *connectivity.Monitor) *API {
	t.Helper()

	t.Setenv("SEED_ADMIN_PASSWORD", "admin123")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier123")

	repo := memory.NewSeeded()
	gate, err := authgate.New(testSupervisorPIN)
	if err != nil {
		t.Fatalf("authgate.New: %v", err)
	}
	provider := flash.NewDeterministicSimulator(1, 0)
	svc := service.New(repo, gate, provider, monitor, "ZAR")
	sessions := terminal.NewManager(terminal.Config{
		Repo:       repo,
		Gate:       gate,
		Classifier: monitor,
		Card:       cardpay.Simulator{},
		Flash:      provider,
		TaxRate:    0.15,
		Currency:   "ZAR",
	})
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, sessions, auth, monitor, "*")
}

func login(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	resp, err := api.auth.Login(domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return resp.AccessToken
}

// do runs one request through the full handler stack with auth and CSRF
// headers set.
func do(t *testing.T, api *API, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Terminal-ID", "till-1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost || method == http.MethodPatch || method == http.MethodDelete {
		req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	}

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decodeBody(t, rec)["ok"] != true {
		t.Fatal("expected ok:true")
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token := login(t, api, "cashier", "cashier123")
	rec = do(t, api, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	products := decodeBody(t, rec)["products"].([]any)
	if len(products) != 3 {
		t.Fatalf("expected the 3 seeded products, got %d", len(products))
	}
}

func TestMutationRequiresCSRFToken(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	payload, _ := json.Marshal(domain.AddToCartRequest{ProductID: "p1", Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestCartAndCashCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	rec := do(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.AddToCartRequest{ProductID: "p1", Quantity: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("add to cart: %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, api, http.MethodPost, "/api/v1/cart/cash", token, map[string]any{"cash_received_cents": 10000})
	if rec.Code != http.StatusOK {
		t.Fatalf("enter cash: %d (body: %s)", rec.Code, rec.Body.String())
	}
	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if cart["change_due_cents"].(float64) != 1952 {
		t.Fatalf("change due = %v, want 1952", cart["change_due_cents"])
	}

	rec = do(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{SupervisorPIN: testSupervisorPIN})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	sale := body["sale"].(map[string]any)
	if sale["total_cents"].(float64) != 8048 {
		t.Fatalf("total = %v, want 8048", sale["total_cents"])
	}
	if body["queued"] != false {
		t.Fatal("online checkout must not be queued")
	}
}

func TestCheckoutWithWrongPINReturns403(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	do(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.AddToCartRequest{ProductID: "p3", Quantity: 1})
	do(t, api, http.MethodPost, "/api/v1/cart/cash", token, map[string]any{"cash_received_cents": 2000})

	rec := do(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{SupervisorPIN: "000000"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["error"] != "supervisor PIN rejected; contact your system administrator" {
		t.Fatal("PIN rejection message must be uninformative and fixed")
	}

	// Cart survives the rejection.
	rec = do(t, api, http.MethodGet, "/api/v1/cart", token, nil)
	cart := decodeBody(t, rec)["cart"].(map[string]any)
	if len(cart["lines"].([]any)) != 1 {
		t.Fatal("cart must survive a rejected PIN")
	}
}

func TestOfflineCheckoutReportsQueued(t *testing.T) {
	monitor := connectivity.NewMonitor(false)
	api := newTestAPIWithMonitor(t, monitor)
	token := login(t, api, "cashier", "cashier123")

	do(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.AddToCartRequest{ProductID: "p3", Quantity: 1})
	do(t, api, http.MethodPost, "/api/v1/cart/cash", token, map[string]any{"cash_received_cents": 2000})

	rec := do(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{SupervisorPIN: testSupervisorPIN})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d (body: %s)", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["queued"] != true {
		t.Fatal("offline checkout must be queued")
	}

	rec = do(t, api, http.MethodGet, "/api/v1/receipts/queued", token, nil)
	receipts := decodeBody(t, rec)["receipts"].([]any)
	if len(receipts) != 1 {
		t.Fatalf("queued receipts = %v", receipts)
	}
}

func TestConnectivityEndpointRelaysBrowserEvents(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	rec := do(t, api, http.MethodPost, "/api/v1/connectivity", token, map[string]any{"online": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("set connectivity: %d (body: %s)", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["online"] != false {
		t.Fatal("expected offline after relay")
	}

	rec = do(t, api, http.MethodGet, "/api/v1/connectivity", token, nil)
	if decodeBody(t, rec)["online"] != false {
		t.Fatal("classification must persist")
	}
}

func TestFlashSaleEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	rec := do(t, api, http.MethodPost, "/api/v1/flash/sale", token, domain.FlashSaleRequest{
		Type:          domain.FlashElectricity,
		Provider:      "Eskom",
		AmountCents:   10000,
		SupervisorPIN: testSupervisorPIN,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("flash sale: %d (body: %s)", rec.Code, rec.Body.String())
	}
	tx := decodeBody(t, rec)["transaction"].(map[string]any)
	if tx["token"] == "" || tx["token"] == nil {
		t.Fatal("electricity sale must dispense a token")
	}

	rec = do(t, api, http.MethodGet, "/api/v1/flash/wallet", token, nil)
	if decodeBody(t, rec)["balance_cents"].(float64) != 450075-10000 {
		t.Fatal("wallet must reflect the float deduction")
	}
}

func TestAdminOnlyEndpointsRejectCashier(t *testing.T) {
	api := newTestAPI(t)
	cashierToken := login(t, api, "cashier", "cashier123")
	adminToken := login(t, api, "admin", "admin123")

	rec := do(t, api, http.MethodGet, "/api/v1/reports/daily", cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/reports/daily", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestVoidSaleEndpoint(t *testing.T) {
	api := newTestAPI(t)
	cashierToken := login(t, api, "cashier", "cashier123")
	adminToken := login(t, api, "admin", "admin123")

	do(t, api, http.MethodPost, "/api/v1/cart/items", cashierToken, domain.AddToCartRequest{ProductID: "p2", Quantity: 1})
	do(t, api, http.MethodPost, "/api/v1/cart/cash", cashierToken, map[string]any{"cash_received_cents": 5000})
	rec := do(t, api, http.MethodPost, "/api/v1/checkout", cashierToken, domain.CheckoutRequest{SupervisorPIN: testSupervisorPIN})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d", rec.Code)
	}
	saleID := decodeBody(t, rec)["sale"].(map[string]any)["id"].(string)

	rec = do(t, api, http.MethodPost, "/api/v1/sales/"+saleID+"/void", adminToken, domain.VoidSaleRequest{
		Reason:        "test void",
		SupervisorPIN: testSupervisorPIN,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("void: %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, api, http.MethodGet, "/api/v1/sales/"+saleID, adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after void, got %d", rec.Code)
	}
}

func TestBarcodeLookupEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "cashier", "cashier123")

	rec := do(t, api, http.MethodGet, "/api/v1/products/barcode/5449000000996", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("barcode lookup: %d (body: %s)", rec.Code, rec.Body.String())
	}
	product := decodeBody(t, rec)["product"].(map[string]any)
	if product["id"] != "p3" {
		t.Fatalf("product = %v, want p3", product["id"])
	}

	rec = do(t, api, http.MethodGet, "/api/v1/products/barcode/0000000000000", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}
