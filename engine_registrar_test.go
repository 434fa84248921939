package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestGetOrCreateLoginProvisions(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store)

	reg, err := engine.GetOrCreateLogin(context.Background(), "pat@example.com", "Pat", "Smith", 11)
	if err != nil {
		t.Fatalf("GetOrCreateLogin() failed: %v", err)
	}
	if !reg.IsNew {
		t.Fatal("expected a new login")
	}

	user := store.login(reg.LoginID)
	if user.Status != StatusNotVerified {
		t.Fatalf("status = %v, want StatusNotVerified", user.Status)
	}
	if user.LoginType != LoginTypePassword {
		t.Fatalf("login type = %d, want %d", user.LoginType, LoginTypePassword)
	}
	// Temporary password is the mail local part until verification replaces it.
	if user.PasswordHash != "plain:pat" {
		t.Fatalf("temp hash = %q", user.PasswordHash)
	}
	if user.TFASecret == "" || user.TFAQRRef == "" {
		t.Fatal("new login must carry a TFA secret and QR reference")
	}
	if linked, _ := store.IsLinked(context.Background(), 11, reg.LoginID); !linked {
		t.Fatal("new login must be linked to the tenant")
	}
	if store.createTFACodeCalls != 1 {
		t.Fatal("provisioning must issue a verification code")
	}
}

func TestGetOrCreateLoginIsIdempotentAcrossTenants(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store)

	first, err := engine.GetOrCreateLogin(context.Background(), "pat@example.com", "Pat", "Smith", 11)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := engine.GetOrCreateLogin(context.Background(), "pat@example.com", "Pat", "Smith", 22)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if second.IsNew {
		t.Fatal("second tenant must reuse the login")
	}
	if first.LoginID != second.LoginID {
		t.Fatalf("login ids differ: %d vs %d", first.LoginID, second.LoginID)
	}
	if store.createLoginCalls != 1 {
		t.Fatalf("login rows created = %d, want 1", store.createLoginCalls)
	}

	linked, err := engine.ListLinkedAccounts(context.Background(), first.LoginID)
	if err != nil {
		t.Fatalf("ListLinkedAccounts() failed: %v", err)
	}
	if len(linked) != 2 {
		t.Fatalf("link rows = %d, want 2", len(linked))
	}
}

func TestSetActiveAccountRequiresLink(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	store.link(77, user.LoginID)
	engine := newTestEngine(t, store)

	if err := engine.SetActiveAccount(context.Background(), user.LoginID, 99); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("unlinked switch: expected ErrAccessDenied, got %v", err)
	}

	store.link(99, user.LoginID)
	if err := engine.SetActiveAccount(context.Background(), user.LoginID, 99); err != nil {
		t.Fatalf("linked switch failed: %v", err)
	}
	if got := store.login(user.LoginID).LastAccountID; got != 99 {
		t.Fatalf("active account = %d, want 99", got)
	}
}

func TestResetLogin(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	user.LastLoginAttempts = 5
	user.Status = StatusLocked
	store.addLogin(*user)
	engine := newTestEngine(t, store)

	if err := engine.ResetLogin(context.Background(), user.Email); err != nil {
		t.Fatalf("ResetLogin() failed: %v", err)
	}

	after := store.login(user.LoginID)
	if after.Status != StatusNotVerified {
		t.Fatalf("status = %v, want StatusNotVerified", after.Status)
	}
	if after.LastLoginAttempts != 0 {
		t.Fatalf("attempts = %d, want 0", after.LastLoginAttempts)
	}
	if after.TFASecret != "" || after.LastSessionID != "" {
		t.Fatal("reset must clear the TFA secret and session")
	}
	if after.PasswordHash != "plain:jane" {
		t.Fatalf("temp hash = %q", after.PasswordHash)
	}
	if store.createTFACodeCalls != 1 {
		t.Fatal("reset must issue a fresh verification code")
	}
}

func TestResetLoginDeleted(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	user.Status = StatusDeleted
	store.addLogin(*user)
	engine := newTestEngine(t, store)

	if err := engine.ResetLogin(context.Background(), user.Email); !errors.Is(err, ErrDeletedUser) {
		t.Fatalf("expected ErrDeletedUser, got %v", err)
	}
}

func TestTemporaryPassword(t *testing.T) {
	cases := []struct{ email, want string }{
		{"pat@example.com", "pat"},
		{"no-at-sign", "no-at-sign"},
		{"@leading.example.com", "@leading.example.com"},
	}
	for _, tc := range cases {
		if got := temporaryPassword(tc.email); got != tc.want {
			t.Fatalf("temporaryPassword(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}
