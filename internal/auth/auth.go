package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"thetalkingdrone/internal/domain"
)

const issuer = "thetalkingdrone"

// Role groups used by the transports.
var (
	Operators = []string{domain.RoleAdmin, domain.RolePilot}
	Anyone    = []string{domain.RoleAdmin, domain.RolePilot, domain.RoleObserver}
	Admins    = []string{domain.RoleAdmin}
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs a token for an operator. Unknown roles are rejected.
func (a *Authenticator) IssueToken(name, role string) (string, time.Time, error) {
	if strings.TrimSpace(name) == "" {
		return "", time.Time{}, fmt.Errorf("%w: name is required", domain.ErrInvalid)
	}
	if !domain.ValidateRole(role) {
		return "", time.Time{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalid, role)
	}
	now := a.now().UTC()
	exp := now.Add(a.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return str, exp, nil
}

func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || !domain.ValidateRole(claims.Role) {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	return claims, nil
}

// Authorize parses a bearer header and checks the role against allowed.
func (a *Authenticator) Authorize(header string, allowed ...string) (*Claims, error) {
	token := ExtractBearerToken(header)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	}
	claims, err := a.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if !HasRole(claims, allowed...) {
		return nil, fmt.Errorf("%w: role %s", domain.ErrForbidden, claims.Role)
	}
	return claims, nil
}

func HasRole(claims *Claims, allowed ...string) bool {
	if claims == nil {
		return false
	}
	for _, r := range allowed {
		if claims.Role == r {
			return true
		}
	}
	return false
}

func ExtractBearerToken(authHeader string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type ctxKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*Claims)
	return claims, ok
}
