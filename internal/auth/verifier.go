// Package auth verifies bearer tokens and extracts the calling identity.
// The service trusts an already-authenticated identity; login itself happens
// elsewhere.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   string // visitor, admin
}

// Verifier validates tokens. Modes:
//   - dev:  token is "user:role", no signature (local development only)
//   - hmac: HS256 JWT with "sub" and "role" claims
type Verifier struct {
	Mode       string
	HMACSecret []byte
}

func New(mode, hmacSecret string) *Verifier {
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: strings.ToLower(mode), HMACSecret: []byte(hmacSecret)}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		user, role, ok := strings.Cut(token, ":")
		if !ok || user == "" {
			return Principal{}, errors.New("invalid dev token; expected user:role")
		}
		return Principal{UserID: user, Role: role}, nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.HMACSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Principal{}, err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, errors.New("missing sub claim")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = "visitor"
	}
	return Principal{UserID: sub, Role: strings.ToLower(role)}, nil
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }
