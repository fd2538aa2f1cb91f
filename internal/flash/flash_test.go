package flash

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"mzansipos/terminal/internal/domain"
)

var tokenPattern = regexp.MustCompile(`^\d{4} \d{4} \d{4}$`)

func TestProcessSaleIssuesTokenForElectricity(t *testing.T) {
	s := NewDeterministicSimulator(1, 0) // never declines

	res, err := s.ProcessSale(context.Background(), domain.FlashElectricity, "Eskom", 10000, "")
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}
	if !strings.HasPrefix(res.Reference, "FLS-") {
		t.Fatalf("reference = %q, want FLS- prefix", res.Reference)
	}
	if !tokenPattern.MatchString(res.Token) {
		t.Fatalf("token = %q, want 12 digits grouped in fours", res.Token)
	}
}

func TestProcessSaleNoTokenForAirtime(t *testing.T) {
	s := NewDeterministicSimulator(1, 0)

	res, err := s.ProcessSale(context.Background(), domain.FlashAirtime, "Vodacom", 5000, "0821234567")
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}
	if res.Token != "" {
		t.Fatalf("airtime must not carry a token, got %q", res.Token)
	}
}

func TestProcessSaleDecline(t *testing.T) {
	s := NewDeterministicSimulator(1, 1) // always declines

	_, err := s.ProcessSale(context.Background(), domain.FlashAirtime, "MTN", 2900, "0831234567")
	if !errors.Is(err, ErrProviderDeclined) {
		t.Fatalf("err = %v, want ErrProviderDeclined", err)
	}
	if err.Error() != "Flash API: Insufficient Wallet Balance or Provider Timeout" {
		t.Fatalf("decline message = %q", err.Error())
	}
}

func TestProcessSaleRejectsBadInput(t *testing.T) {
	s := NewDeterministicSimulator(1, 0)
	ctx := context.Background()

	if _, err := s.ProcessSale(ctx, "LOTTO", "x", 100, ""); err == nil {
		t.Fatal("expected error for unknown sale type")
	}
	if _, err := s.ProcessSale(ctx, domain.FlashData, "Telkom", 0, ""); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestCheckBalance(t *testing.T) {
	s := NewDeterministicSimulator(1, 0)

	balance, err := s.CheckBalance(context.Background())
	if err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if balance != 450075 {
		t.Fatalf("balance = %d, want 450075", balance)
	}
}
