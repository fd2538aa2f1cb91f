package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"mzansipos/terminal/internal/domain"
	"mzansipos/terminal/internal/store/memory"
)

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()

	t.Setenv("SEED_ADMIN_PASSWORD", "admin123")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier123")
	return NewAuthManager("test-secret-key", time.Hour, memory.NewSeeded())
}

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Role != "admin" || resp.AccessToken == "" {
		t.Fatalf("resp = %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "wrong"}); err == nil {
		t.Fatal("wrong password must fail")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "ghost", Password: "x"}); err == nil {
		t.Fatal("unknown user must fail")
	}
}

func TestLoginUsernameIsCaseInsensitive(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.Login(domain.LoginRequest{Username: "  Admin ", Password: "admin123"}); err != nil {
		t.Fatalf("Login with spaced mixed-case username: %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(domain.LoginRequest{Username: "cashier", Password: "cashier123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tampered := resp.AccessToken[:len(resp.AccessToken)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatal("tampered token must be rejected")
	}

	other := NewAuthManager("a-different-secret", time.Hour, nil)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestBootstrapUpgradesPlainTextPasswords(t *testing.T) {
	repo := memory.NewSeeded()
	if err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username:  "legacy",
		Password:  "plaintext-pass",
		Role:      "cashier",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	auth := NewAuthManager("test-secret-key", time.Hour, repo)
	if _, err := auth.Login(domain.LoginRequest{Username: "legacy", Password: "plaintext-pass"}); err != nil {
		t.Fatalf("legacy login: %v", err)
	}

	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	for _, u := range users {
		if u.Username == "legacy" && !strings.HasPrefix(u.Password, "$2") {
			t.Fatal("plain-text password must be upgraded to a bcrypt hash in the store")
		}
	}
}
