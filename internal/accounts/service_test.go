package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"gavel/api/internal/store"
)

type fakeUserStore struct {
	users map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]store.User)}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.users[user.Email] = user
	return nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Email:       "Dana@Example.com",
		Password:    "correct horse",
		DisplayName: "Dana",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "dana@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Fatal("expected password to be hashed")
	}

	got, err := svc.Authenticate(ctx, "dana@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %q, got %q", user.ID, got.ID)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@b.test", Password: "longenough", DisplayName: "A"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.test", Password: "longenough", DisplayName: "A2"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.test", Password: "short", DisplayName: "A"})
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@b.test", Password: "longenough", DisplayName: "A"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, err := svc.Authenticate(ctx, "a@b.test", "wrong password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = svc.Authenticate(ctx, "missing@b.test", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
