package authgate

import (
	"errors"
	"testing"

	"mzansipos/terminal/internal/store"
)

func TestAuthorize(t *testing.T) {
	gate, err := New("246810")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := gate.Authorize("246810"); err != nil {
		t.Fatalf("correct PIN rejected: %v", err)
	}
	if err := gate.Authorize(" 246810 "); err != nil {
		t.Fatalf("correct PIN with whitespace rejected: %v", err)
	}

	for _, pin := range []string{"000000", "", "246811"} {
		err := gate.Authorize(pin)
		if !errors.Is(err, store.ErrNotAuthorized) {
			t.Fatalf("Authorize(%q) = %v, want ErrNotAuthorized", pin, err)
		}
		// The rejection message must not reveal anything about the PIN.
		if err.Error() != "supervisor PIN rejected; contact your system administrator" {
			t.Fatalf("rejection message = %q", err.Error())
		}
	}
}

func TestAuthorizeAllowsRetryAfterFailure(t *testing.T) {
	gate, err := New("135790")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := gate.Authorize("999999"); !errors.Is(err, store.ErrNotAuthorized) {
			t.Fatalf("attempt %d: err = %v, want ErrNotAuthorized", i+1, err)
		}
	}
	if err := gate.Authorize("135790"); err != nil {
		t.Fatalf("correct PIN rejected after failures: %v", err)
	}
}
