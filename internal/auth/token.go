package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the JWT claims carried by every bearer token. The token is the
// only durable record of the identity, so name parts ride along with the
// registered claims.
type Claims struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs a token issuer. The signing secret is required.
func NewIssuer(secret, issuer string, opts ...IssuerOption) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	i := &Issuer{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Mint signs a token for the identity with the given lifetime.
func (i *Issuer) Mint(id Identity, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(id.ID) == "" {
		return "", time.Time{}, errors.New("auth: identity id is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("auth: ttl must be greater than zero")
	}
	// NumericDate claims carry whole seconds, so the returned expiry is
	// truncated to match what the token itself says.
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Role:      string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature and required claims and returns them.
func (i *Issuer) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims, i.now().UTC()); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify parses the token and reconstructs the identity it names.
func (i *Issuer) Verify(token string) (Identity, error) {
	claims, err := i.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	return identityFromClaims(claims, i.now().UTC())
}

func validateClaims(claims *Claims, now time.Time) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func identityFromClaims(claims *Claims, now time.Time) (Identity, error) {
	role, ok := ParseRole(claims.Role)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		ID:          claims.Subject,
		Email:       NormalizeEmail(claims.Email),
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		Role:        role,
		Permissions: PermissionsForRole(role),
		LastActive:  now,
	}, nil
}

// DecodeIdentity reconstructs the identity embedded in a token WITHOUT
// verifying its signature. The session layer uses it to rehydrate state it
// persisted itself; anything crossing a trust boundary goes through
// Issuer.Verify instead.
func DecodeIdentity(token string, now time.Time) (Identity, time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, time.Time{}, ErrInvalidToken
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Identity{}, time.Time{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return Identity{}, time.Time{}, ErrInvalidToken
	}
	id, err := identityFromClaims(&claims, now)
	if err != nil {
		return Identity{}, time.Time{}, err
	}
	return id, claims.ExpiresAt.Time, nil
}
