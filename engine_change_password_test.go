package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestChangePasswordSuccess(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	engine := newTestEngine(t, store)

	err := engine.ChangePassword(context.Background(), user.LoginID, "correct-horse", "battery-staple", "battery-staple")
	if err != nil {
		t.Fatalf("ChangePassword() failed: %v", err)
	}

	after := store.login(user.LoginID)
	if after.PasswordHash != "plain:battery-staple" {
		t.Fatalf("hash = %q", after.PasswordHash)
	}
	if len(store.history[user.LoginID]) != 1 {
		t.Fatalf("history rows = %d, want 1", len(store.history[user.LoginID]))
	}
	if store.setPasswordCalls != 1 {
		t.Fatalf("SetPassword calls = %d", store.setPasswordCalls)
	}
}

func TestChangePasswordConfirmMismatch(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	engine := newTestEngine(t, store)

	err := engine.ChangePassword(context.Background(), user.LoginID, "correct-horse", "new-one", "new-two")
	if !errors.Is(err, ErrNewPassMismatch) {
		t.Fatalf("expected ErrNewPassMismatch, got %v", err)
	}
	if store.setPasswordCalls != 0 {
		t.Fatal("mismatch must not reach the store")
	}
}

func TestChangePasswordSameAsOld(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	engine := newTestEngine(t, store)

	err := engine.ChangePassword(context.Background(), user.LoginID, "correct-horse", "correct-horse", "correct-horse")
	if !errors.Is(err, ErrNewPassNoSame) {
		t.Fatalf("expected ErrNewPassNoSame, got %v", err)
	}
}

func TestChangePasswordHistoryRejection(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	store.history[user.LoginID] = []string{"plain:winter2019", "plain:spring2020"}
	engine := newTestEngine(t, store)

	err := engine.ChangePassword(context.Background(), user.LoginID, "correct-horse", "spring2020", "spring2020")
	if !errors.Is(err, ErrNewPassAlreadyUsed) {
		t.Fatalf("expected ErrNewPassAlreadyUsed, got %v", err)
	}
}

func TestChangePasswordWrongOldConsumesBudget(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	engine := newTestEngine(t, store)

	err := engine.ChangePassword(context.Background(), user.LoginID, "nope", "battery-staple", "battery-staple")
	if !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass, got %v", err)
	}
	if got := store.login(user.LoginID).LastLoginAttempts; got != 1 {
		t.Fatalf("attempt counter = %d, want 1", got)
	}

	// Exhausting the budget through the change flow locks too.
	for i := 0; i < 3; i++ {
		_ = engine.ChangePassword(context.Background(), user.LoginID, "nope", "battery-staple", "battery-staple")
	}
	err = engine.ChangePassword(context.Background(), user.LoginID, "nope", "battery-staple", "battery-staple")
	if !errors.Is(err, ErrLockedUser) {
		t.Fatalf("expected ErrLockedUser on fifth failure, got %v", err)
	}
	if got := store.login(user.LoginID).Status; got != StatusLocked {
		t.Fatalf("status = %v, want StatusLocked", got)
	}
}

func TestChangePasswordWrongOldTrumpsPayloadChecks(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	engine := newTestEngine(t, store)

	// A wrong old password is counted even when the payload would also be
	// rejected; the submission must not skip the audit row by arriving with
	// a mismatched confirmation.
	err := engine.ChangePassword(context.Background(), user.LoginID, "nope", "new-one", "new-two")
	if !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass, got %v", err)
	}
	if got := store.login(user.LoginID).LastLoginAttempts; got != 1 {
		t.Fatalf("attempt counter = %d, want 1", got)
	}
	if len(store.failures) != 1 || store.failures[0].Outcome != CodeInvalidPass {
		t.Fatalf("expected one INVALID_PASS row, got %+v", store.failures)
	}
}

func TestChangePasswordUnknownLogin(t *testing.T) {
	engine := newTestEngine(t, newMockStore())

	err := engine.ChangePassword(context.Background(), 404, "a", "b", "b")
	if !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestChangePasswordLockedLogin(t *testing.T) {
	store := newMockStore()
	user := activeUser(store)
	user.Status = StatusLocked
	store.addLogin(*user)
	engine := newTestEngine(t, store)

	err := engine.ChangePassword(context.Background(), user.LoginID, "correct-horse", "battery-staple", "battery-staple")
	if !errors.Is(err, ErrLockedUser) {
		t.Fatalf("expected ErrLockedUser, got %v", err)
	}
}
