package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestDevMode(t *testing.T) {
	v := New("dev", "")
	p, err := v.Verify("u42:admin")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "u42" || !p.IsAdmin() {
		t.Fatalf("principal: %+v", p)
	}
	if _, err := v.Verify("no-role-separator-and-empty:"); err != nil {
		t.Fatalf("empty role should still parse: %v", err)
	}
	if _, err := v.Verify(":admin"); err == nil {
		t.Fatalf("empty user accepted")
	}
	if _, err := v.Verify("justuser"); err == nil {
		t.Fatalf("token without separator accepted")
	}
}

func TestHMACMode(t *testing.T) {
	secret := "test-secret"
	v := New("hmac", secret)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u7",
		"role": "Admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := v.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "u7" || p.Role != "admin" {
		t.Fatalf("principal: %+v", p)
	}

	// wrong secret rejected
	if _, err := New("hmac", "other").Verify(signed); err == nil {
		t.Fatalf("wrong secret accepted")
	}

	// missing sub rejected
	tok = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"})
	signed, _ = tok.SignedString([]byte(secret))
	if _, err := v.Verify(signed); err == nil {
		t.Fatalf("token without sub accepted")
	}

	// role defaults to visitor
	tok = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u8"})
	signed, _ = tok.SignedString([]byte(secret))
	p, err = v.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Role != "visitor" || p.IsAdmin() {
		t.Fatalf("default role: %+v", p)
	}
}
