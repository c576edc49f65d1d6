package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

func TestIssueParse_RoundTrip(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	u := domain.User{ID: "u1", Name: "Ana", Role: domain.RoleAdmin}

	tok, exp, err := iss.Issue(u)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	a, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.ID != "u1" || a.Name != "Ana" || !a.IsAdmin() {
		t.Fatalf("actor %+v", a)
	}
}

func TestParse_Rejects(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	tok, _, _ := iss.Issue(domain.User{ID: "u1", Role: domain.RoleStudent})

	if _, err := NewIssuer("other", time.Hour).Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: %v", err)
	}
	if _, err := iss.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: %v", err)
	}

	// Expired.
	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := iss.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: %v", err)
	}

	// Unsigned token.
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"})
	raw, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := NewIssuer("s3cret", time.Hour).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none: %v", err)
	}
}

func TestParse_UnknownRoleIsStudent(t *testing.T) {
	iss := NewIssuer("s3cret", 0)
	tok, _, _ := iss.Issue(domain.User{ID: "u1", Role: "superuser"})
	a, err := iss.Parse(tok)
	if err != nil || a.Role != domain.RoleStudent {
		t.Fatalf("got %+v err=%v", a, err)
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("admin123")
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "admin123") || VerifyPassword(h, "admin124") {
		t.Fatal("verify mismatch")
	}
}
