package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken indicates the bearer token failed verification.
var ErrInvalidToken = errors.New("invalid token")

// clockSkew tolerates small differences between the issuer's clock and ours.
const clockSkew = 5 * time.Second

// Claims are the JWT claims issued by the session service.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens minted by the session service and turns them
// into callers. Token issuance itself lives outside this service.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a Verifier for the given shared secret and issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses token and returns the caller it identifies.
func (v *Verifier) Verify(token string) (Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Caller{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}

		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithLeeway(clockSkew))
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Caller{}, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return Caller{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return Caller{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}

	if claims.ExpiresAt == nil {
		return Caller{}, fmt.Errorf("%w: expiry missing", ErrInvalidToken)
	}

	return Caller{
		ID:    claims.Subject,
		Email: claims.Email,
		Roles: normalizeRoles(claims.Roles),
	}, nil
}

// Sign mints a token for c. It backs the CLI and tests; production tokens
// come from the session service.
func (v *Verifier) Sign(c Caller, ttl time.Duration) (string, error) {
	if c.IsAnonymous() {
		return "", errors.New("caller id is required")
	}

	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}

	now := v.now().UTC()
	claims := Claims{
		Email: c.Email,
		Roles: normalizeRoles(c.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   c.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}
