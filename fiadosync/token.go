package fiadosync

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Angel050521/MiFiadoFinal/internal/auth"
)

// TokenAuth guards protected routes. A caller is authorized when the bearer
// credential is either the shared API key or a valid token issued at login.
// Neither path leaks which check failed - auth errors stay generic.
type TokenAuth struct {
	secret    []byte
	sharedKey string
}

// NewTokenAuth creates a token authenticator. sharedKey may be empty to
// disable the static-credential path.
func NewTokenAuth(sharedKey, secret string) *TokenAuth {
	return &TokenAuth{
		secret:    []byte(secret),
		sharedKey: sharedKey,
	}
}

// TokenClaims are the claims carried by issued bearer tokens.
type TokenClaims struct {
	DeviceID string `json:"did"` // Device the token was issued to
	jwt.RegisteredClaims
}

// GenerateToken issues an HS256 bearer token for a user/device pair.
func (t *TokenAuth) GenerateToken(userID, deviceID string, expiration time.Duration) (string, error) {
	claims := &TokenClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "mifiado",
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken validates an issued token and returns its claims.
func (t *TokenAuth) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		if claims.Subject == "" {
			return nil, fmt.Errorf("missing sub (user ID) in token")
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Authorize checks the request's bearer credential. The credential must be
// the shared API key or a structurally well-formed (three-part) issued token
// that validates.
func (t *TokenAuth) Authorize(r *http.Request) (*TokenClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: authorization header required", ErrUnauthorized)
	}

	credential := strings.TrimPrefix(authHeader, "Bearer ")
	if credential == authHeader {
		return nil, fmt.Errorf("%w: bearer credential required", ErrUnauthorized)
	}

	if t.sharedKey != "" && credential == t.sharedKey {
		return nil, nil
	}

	if strings.Count(credential, ".") != 2 {
		return nil, fmt.Errorf("%w: malformed credential", ErrUnauthorized)
	}
	claims, err := t.ValidateToken(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return claims, nil
}

// Middleware rejects unauthorized requests and, when the credential is an
// issued token, attaches the caller's identity to the request context.
func (t *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := t.Authorize(r)
		if err != nil {
			slog.Debug("Request rejected by token auth", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"No autorizado","details":"Falta el header de autorización o es inválido"}`))
			return
		}

		if claims != nil {
			ctx := auth.SetAuthContext(r.Context(), claims.Subject, claims.DeviceID)
			r = r.WithContext(ctx)
		}

		next.ServeHTTP(w, r)
	})
}
