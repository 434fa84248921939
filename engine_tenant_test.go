package authcore

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

func TestResolveTenant(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	tenantFor(store, 77)
	engine := newTestEngine(t, store)

	tenant, conn, err := engine.ResolveTenant(context.Background(), 77, user.LoginID)
	if err != nil {
		t.Fatalf("ResolveTenant() failed: %v", err)
	}
	if tenant.Code != "acme" {
		t.Fatalf("tenant code = %q", tenant.Code)
	}
	if conn.Server != "db1.internal" || conn.Database != "acme_live" {
		t.Fatalf("connection target wrong: %+v", conn)
	}
	if conn.Password != "db-secret" {
		t.Fatalf("secret not decrypted: %q", conn.Password)
	}
	if want := "cx_77_" + strconv.FormatInt(user.LoginID, 10); conn.PoolName != want {
		t.Fatalf("pool name = %q, want %q", conn.PoolName, want)
	}
}

func TestResolveTenantMissing(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	engine := newTestEngine(t, store)

	_, _, err := engine.ResolveTenant(context.Background(), 404, user.LoginID)
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestResolveTenantWrongKeyMaterial(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	store.addTenant(TenantAccount{
		AccountID:       88,
		Code:            "other",
		EncryptedSecret: "enc:acme:db-secret", // sealed under a different tenant's code
	})
	engine := newTestEngine(t, store)

	if _, _, err := engine.ResolveTenant(context.Background(), 88, user.LoginID); err == nil {
		t.Fatal("a ciphertext copied between tenants must not decrypt")
	}
}

func TestResolveOAuthCallback(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	store.link(77, user.LoginID)
	engine := newTestEngine(t, store)

	got, err := engine.ResolveOAuthCallback(context.Background(), 77, user.LoginID)
	if err != nil {
		t.Fatalf("ResolveOAuthCallback() failed: %v", err)
	}
	if got.LoginID != user.LoginID {
		t.Fatalf("login id = %d", got.LoginID)
	}

	if _, err := engine.ResolveOAuthCallback(context.Background(), 99, user.LoginID); !errors.Is(err, ErrInvalidOAuthCallback) {
		t.Fatalf("unlinked pair: expected ErrInvalidOAuthCallback, got %v", err)
	}
	if _, err := engine.ResolveOAuthCallback(context.Background(), 77, 404); !errors.Is(err, ErrInvalidOAuthCallback) {
		t.Fatalf("unknown login: expected ErrInvalidOAuthCallback, got %v", err)
	}
}

func TestResolveOAuthCallbackInactive(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	user.Status = StatusNotVerified
	store.addLogin(*user)
	store.link(77, user.LoginID)
	engine := newTestEngine(t, store)

	if _, err := engine.ResolveOAuthCallback(context.Background(), 77, user.LoginID); !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("expected ErrInactiveUser, got %v", err)
	}
}

func TestCountryFromCurrency(t *testing.T) {
	cases := []struct{ currency, want string }{
		{"GBP", "GB"},
		{"usd", "US"},
		{"EUR", "EU"},
		{"XOF", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := countryFromCurrency(tc.currency); got != tc.want {
			t.Fatalf("countryFromCurrency(%q) = %q, want %q", tc.currency, got, tc.want)
		}
	}
}
