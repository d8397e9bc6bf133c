package auth

import (
	"errors"
	"os"
	stdsync "sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	defaultSecret   = "utubs-dev-secret-change-in-production"
	defaultTokenTTL = 24 * time.Hour
)

var (
	mu       stdsync.RWMutex
	secret   []byte
	tokenTTL time.Duration
)

// Claims represents the JWT claims
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Configure sets the signing secret and token lifetime. Empty or zero values
// fall back to JWT_SECRET and 24 hours.
func Configure(jwtSecret string, ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	} else {
		secret = nil
	}
	tokenTTL = ttl
}

func getJWTSecret() []byte {
	mu.RLock()
	defer mu.RUnlock()
	if secret != nil {
		return secret
	}
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte(defaultSecret)
}

func getTokenDuration() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	if tokenTTL > 0 {
		return tokenTTL
	}
	return defaultTokenTTL
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(userID uint, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenDuration())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "utubs",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTSecret())
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return getJWTSecret(), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
