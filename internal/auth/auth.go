// Package auth issues and validates the admin JWT for the HTTP API.
// There is a single admin identity whose bcrypt hash lives in the
// config file.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims are the JWT claims for the authenticated admin.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// Service handles authentication operations.
type Service struct {
	jwtSecret     []byte
	adminHash     string
	tokenDuration time.Duration
}

// NewService creates an auth service. adminHash is the bcrypt hash of
// the admin password; an empty hash disables login entirely.
func NewService(jwtSecret, adminHash string, tokenDuration time.Duration) *Service {
	if tokenDuration == 0 {
		tokenDuration = 24 * time.Hour
	}
	return &Service{
		jwtSecret:     []byte(jwtSecret),
		adminHash:     adminHash,
		tokenDuration: tokenDuration,
	}
}

// HashPassword creates a bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword compares a password against a hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate checks the admin password and returns a signed token.
func (s *Service) Authenticate(password string) (string, error) {
	if s.adminHash == "" || !CheckPassword(password, s.adminHash) {
		return "", ErrInvalidCredentials
	}
	claims := Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a JWT and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
