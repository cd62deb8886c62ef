// Package api implements the HTTP surface of the trip planner service.
package api

import (
	"net/http"
	"strings"

	"vintrail/internal/auth"
)

// getPrincipal extracts the caller identity.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - Else falls back to headers for local development.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return pr
		}
	}
	user := r.Header.Get("X-User-Id")
	role := r.Header.Get("X-Role")
	if user == "" {
		user = "u_demo"
	}
	if role == "" {
		role = "visitor"
	}
	return auth.Principal{UserID: user, Role: role}
}
