// Package cardpay talks to the integrated card machine. The terminal waits
// for the acquirer's answer before a card sale may commit.
package cardpay

import (
	"context"
	"fmt"
	"time"
)

// Terminal authorizes one card payment and returns the acquirer reference.
type Terminal interface {
	Authorize(ctx context.Context, amountCents int64) (string, error)
}

// Simulator stands in for the card machine: it approves after a fixed
// processing delay. Zero delay approves immediately, which tests rely on.
type Simulator struct {
	Delay time.Duration
}

func (s Simulator) Authorize(ctx context.Context, amountCents int64) (string, error) {
	if amountCents < 1 {
		return "", fmt.Errorf("card amount must be positive, got %d", amountCents)
	}

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf("CARD-%d", time.Now().UnixMilli()), nil
}
