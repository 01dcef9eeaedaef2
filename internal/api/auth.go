package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wanderlust/wanderbridge/internal/auth"
)

// LoginRequest is the request body for login
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is the response body for successful login
type LoginResponse struct {
	Token string `json:"token"`
}

// handleLogin authenticates the admin and returns a JWT token
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var login LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&login); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if login.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	token, err := r.auth.Authenticate(login.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// getAuthClaims extracts and validates the bearer token, nil when absent
// or invalid
func (r *Router) getAuthClaims(req *http.Request) *auth.Claims {
	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}
	claims, err := r.auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil
	}
	return claims
}

// requireAuth is middleware that validates the JWT before calling the
// handler
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.getAuthClaims(req) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, req)
	}
}
