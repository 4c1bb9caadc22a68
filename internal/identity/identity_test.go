package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coesco/opsapi/internal/identity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestFromContext_Anonymous(t *testing.T) {
	c := identity.FromContext(context.Background())
	if !c.IsAnonymous() {
		t.Fatalf("expected anonymous caller, got %+v", c)
	}
}

func TestWithCaller_RoundTrip(t *testing.T) {
	ctx := identity.WithCaller(context.Background(), identity.Caller{
		ID:    " emp-123 ",
		Roles: []string{"Admin", "admin", " sales "},
	})

	c := identity.FromContext(ctx)
	if c.ID != "emp-123" {
		t.Errorf("ID = %q, want emp-123", c.ID)
	}

	if len(c.Roles) != 2 || !c.HasRole("ADMIN") || !c.HasRole("sales") {
		t.Errorf("Roles = %v, want [admin sales]", c.Roles)
	}
}

func TestVerifier_SignAndVerify(t *testing.T) {
	v := identity.NewVerifier(testSecret, "coesco")

	token, err := v.Sign(identity.Caller{ID: "emp-123", Email: "a@coesco.com", Roles: []string{"admin"}}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	c, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if c.ID != "emp-123" || c.Email != "a@coesco.com" || !c.HasRole("admin") {
		t.Errorf("unexpected caller %+v", c)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	signer := identity.NewVerifier(testSecret, "coesco")

	token, err := signer.Sign(identity.Caller{ID: "emp-123"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tests := []struct {
		name     string
		verifier *identity.Verifier
		token    string
	}{
		{name: "empty", verifier: signer, token: ""},
		{name: "garbage", verifier: signer, token: "not.a.token"},
		{name: "wrong secret", verifier: identity.NewVerifier("ffffffffffffffffffffffffffffffff", "coesco"), token: token},
		{name: "wrong issuer", verifier: identity.NewVerifier(testSecret, "other"), token: token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.verifier.Verify(tt.token); !errors.Is(err, identity.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifier_SignRequiresCaller(t *testing.T) {
	v := identity.NewVerifier(testSecret, "coesco")
	if _, err := v.Sign(identity.Caller{}, time.Hour); err == nil {
		t.Fatal("expected error for anonymous caller")
	}
}
