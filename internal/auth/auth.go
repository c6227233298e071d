// Package auth verifies bearer tokens and carries the verified caller
// through request contexts.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
)

// UserContext identifies the verified caller of a request.
type UserContext struct {
	UserID string
	Email  string
}

type contextKey struct{}

// WithUserContext stores the caller on ctx.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, contextKey{}, uc)
}

// GetUserContext returns the caller stored on ctx, or an UNAUTHENTICATED
// error when the request carries no verified identity.
func GetUserContext(ctx context.Context) (*UserContext, error) {
	uc, ok := ctx.Value(contextKey{}).(*UserContext)
	if !ok || uc == nil || uc.UserID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}
	return uc, nil
}

// Claims are the JWT claims issued by the identity platform.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier for tokens signed with secret. An empty
// issuer disables the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*UserContext, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errors.Unauthenticated("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, errors.Unauthenticated("token has no subject")
	}

	return &UserContext{UserID: claims.Subject, Email: claims.Email}, nil
}

// VerifyHeader extracts the token from an "Authorization: Bearer" value.
func (v *Verifier) VerifyHeader(header string) (*UserContext, error) {
	if header == "" {
		return nil, errors.Unauthenticated("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.Unauthenticated("invalid authorization header format")
	}
	return v.Verify(strings.TrimSpace(parts[1]))
}

// Issue signs a token for userID. Used by tooling and tests; production
// tokens come from the identity platform.
func (v *Verifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
