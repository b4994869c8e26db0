package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/platinummonkey/tenantgate/pkg/authz"
)

// Claims is the JWT payload issued to authenticated users
type Claims struct {
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	ProfileID *int64 `json:"profileId,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 identity tokens
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. A zero ttl defaults to one hour.
func NewTokenManager(secret []byte, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueToken signs a token for identity
func (tm *TokenManager) IssueToken(identity Identity) (string, error) {
	now := tm.now()
	claims := Claims{
		UserID:    identity.UserID,
		Email:     identity.Email,
		ProfileID: identity.ProfileID,
		Role:      identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.UserID, 10),
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer and expiry and returns the identity
func (tm *TokenManager) ValidateToken(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, authz.Wrap(authz.KindUnauthorized, err, "invalid or expired token")
	}
	if claims.UserID <= 0 {
		return nil, authz.Unauthorized("token has no user")
	}

	return &Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ProfileID: claims.ProfileID,
		Role:      claims.Role,
	}, nil
}

// ResolveIdentity implements Resolver
func (tm *TokenManager) ResolveIdentity(_ context.Context, credential string) (*Identity, error) {
	return tm.ValidateToken(credential)
}
