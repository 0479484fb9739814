package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey int

const (
	ctxPrincipalKey ctxKey = iota
	ctxAdminKey
)

const tokenIssuer = "presale-layer"

// Claims carries the authenticated principal inside a bearer token.
type Claims struct {
	Principal string `json:"principal"`
	Admin     bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// authenticator issues and validates principal tokens and checks the admin
// API key against its bcrypt hash.
type authenticator struct {
	secret       []byte
	ttl          time.Duration
	adminKeyHash string
}

func newAuthenticator(secret []byte, ttl time.Duration, adminKeyHash string) *authenticator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &authenticator{secret: secret, ttl: ttl, adminKeyHash: adminKeyHash}
}

func (a *authenticator) issue(principal string, admin bool, now time.Time) (string, error) {
	claims := &Claims{
		Principal: principal,
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *authenticator) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if strings.TrimSpace(claims.Principal) == "" {
		return nil, fmt.Errorf("token carries no principal")
	}
	return claims, nil
}

func (a *authenticator) checkAdminKey(key string) error {
	if strings.TrimSpace(a.adminKeyHash) == "" {
		return fmt.Errorf("admin key not configured")
	}
	return bcrypt.CompareHashAndPassword([]byte(a.adminKeyHash), []byte(key))
}

// tokenFrom extracts the bearer token from the Authorization header, falling
// back to the token query parameter for websocket clients that cannot set
// headers.
func tokenFrom(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func withIdentity(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, ctxPrincipalKey, claims.Principal)
	if claims.Admin {
		ctx = context.WithValue(ctx, ctxAdminKey, true)
	}
	return ctx
}

// principalFrom returns the authenticated principal, or "" on requests that
// bypassed the auth middleware.
func principalFrom(ctx context.Context) string {
	if p, ok := ctx.Value(ctxPrincipalKey).(string); ok {
		return p
	}
	return ""
}

func isAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(ctxAdminKey).(bool)
	return admin
}
