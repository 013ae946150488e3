// Package session issues and verifies the signed, time-limited tokens carried
// in the console's session cookie.
package session

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/emergency-console/config"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/rbac"
)

var (
	// ErrInvalidToken is returned for any token that fails verification
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token's expiry is not after now
	ErrTokenExpired = errors.New("token expired")
)

// DefaultTTL is the session lifetime when none is configured
const DefaultTTL = 24 * time.Hour

// Options configures a Manager. Setting PublicKey selects RS256, otherwise
// HS256 with Secret is used. PrivateKey may be left nil for a verify-only
// RS256 manager.
type Options struct {
	Secret     []byte
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	TTL        time.Duration
	Issuer     string
	Now        func() time.Time
}

// Manager signs and verifies session tokens
type Manager struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	ttl       time.Duration
	issuer    string
	now       func() time.Time
}

// New creates a Manager from opts
func New(opts Options) (*Manager, error) {
	m := &Manager{
		ttl:    opts.TTL,
		issuer: opts.Issuer,
		now:    opts.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.now == nil {
		m.now = time.Now
	}

	switch {
	case opts.PublicKey != nil:
		m.method = jwt.SigningMethodRS256
		m.verifyKey = opts.PublicKey
		if opts.PrivateKey != nil {
			m.signKey = opts.PrivateKey
		}
	case len(opts.Secret) > 0:
		m.method = jwt.SigningMethodHS256
		m.signKey = opts.Secret
		m.verifyKey = opts.Secret
	default:
		return nil, errors.New("session: a secret or RSA public key is required")
	}

	return m, nil
}

// NewFromConfig builds a Manager from the session config, reading PEM keys
// from disk for RS256
func NewFromConfig(cfg config.SessionConfig) (*Manager, error) {
	opts := Options{TTL: cfg.TTL, Issuer: cfg.Issuer}

	switch cfg.SigningMethod {
	case config.SigningRS256:
		privPEM, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		if opts.PrivateKey, err = jwt.ParseRSAPrivateKeyFromPEM(privPEM); err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}

		pubPEM, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		if opts.PublicKey, err = jwt.ParseRSAPublicKeyFromPEM(pubPEM); err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
	default:
		opts.Secret = []byte(cfg.Secret)
	}

	return New(opts)
}

// TTL returns the configured session lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Algorithm returns the JWS algorithm name
func (m *Manager) Algorithm() string {
	return m.method.Alg()
}

// Issue signs a token for user carrying the permissions its role holds now.
// The returned expiry is in UTC, truncated to the token's second precision.
func (m *Manager) Issue(user *models.User) (string, time.Time, error) {
	if m.signKey == nil {
		return "", time.Time{}, errors.New("session: manager cannot sign without a private key")
	}
	if !user.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("session: unknown role %q", user.Role)
	}

	now := m.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(m.ttl))

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
		Email:       user.Email,
		Role:        string(user.Role),
		Permissions: rbac.Strings(rbac.Permissions(user.Role)),
	}

	token, err := jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}

	return token, expiresAt.Time.UTC(), nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// embedded identity. Every failure wraps ErrInvalidToken or ErrTokenExpired.
func (m *Manager) Verify(_ context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}

	claims := &tokenClaims{}
	token, err := jwt.NewParser(parserOpts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	// exp equal to now counts as expired
	if !m.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", ErrInvalidToken)
	}

	role, err := rbac.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	parsed := &Claims{
		UserID:      userID,
		Email:       claims.Email,
		Role:        role,
		Permissions: rbac.ParsePermissions(claims.Permissions),
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time.UTC()
	}

	return parsed, nil
}
