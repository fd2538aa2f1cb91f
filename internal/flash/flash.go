// Package flash integrates the value-added-services provider used for
// airtime, data bundles, prepaid electricity and gift vouchers. In this
// build the real gateway is replaced by a simulator with the same contract.
package flash

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"mzansipos/terminal/internal/domain"
)

// ErrProviderDeclined is the upstream decline as the gateway reports it.
// The message is surfaced to the cashier verbatim.
var ErrProviderDeclined = errors.New("Flash API: Insufficient Wallet Balance or Provider Timeout")

// Result is a completed provider call. Token is set only for product types
// that dispense one (electricity and vouchers).
type Result struct {
	Reference string
	Token     string
}

// Provider is the upstream VAS gateway.
type Provider interface {
	ProcessSale(ctx context.Context, saleType string, provider string, amountCents int64, phone string) (Result, error)
	CheckBalance(ctx context.Context) (int64, error)
}

// Simulator mimics the gateway: a small random decline rate, latency, and
// token issuance for token-bearing product types.
type Simulator struct {
	mu           sync.Mutex
	rng          *rand.Rand
	declineRate  float64
	latency      time.Duration
	balanceCents int64
}

func NewSimulator() *Simulator {
	return &Simulator{
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		declineRate:  0.05,
		latency:      300 * time.Millisecond,
		balanceCents: 450075,
	}
}

// NewDeterministicSimulator pins the RNG seed and removes latency. Test use.
func NewDeterministicSimulator(seed int64, declineRate float64) *Simulator {
	return &Simulator{
		rng:          rand.New(rand.NewSource(seed)),
		declineRate:  declineRate,
		balanceCents: 450075,
	}
}

func (s *Simulator) ProcessSale(ctx context.Context, saleType string, provider string, amountCents int64, phone string) (Result, error) {
	if !domain.IsFlashType(saleType) {
		return Result{}, fmt.Errorf("unknown VAS sale type %q", saleType)
	}
	if amountCents < 1 {
		return Result{}, fmt.Errorf("amount must be positive, got %d", amountCents)
	}

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	s.mu.Lock()
	declined := s.rng.Float64() < s.declineRate
	var token string
	if !declined && domain.FlashTypeHasToken(saleType) {
		token = s.tokenLocked()
	}
	s.mu.Unlock()

	if declined {
		return Result{}, ErrProviderDeclined
	}

	_ = provider
	_ = phone
	return Result{
		Reference: fmt.Sprintf("FLS-%d", time.Now().UnixMilli()),
		Token:     token,
	}, nil
}

func (s *Simulator) CheckBalance(ctx context.Context) (int64, error) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceCents, nil
}

// tokenLocked issues a 12 digit token grouped in fours, the format printed
// on prepaid electricity and voucher slips.
func (s *Simulator) tokenLocked() string {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(byte('0' + s.rng.Intn(10)))
	}
	return b.String()
}
