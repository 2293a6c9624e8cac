package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
)

// ClaimsVersion is the only accepted value of the "ver" claim.
const ClaimsVersion = 1

const (
	defaultTokenTTL = 8 * time.Hour
	minSecretLength = 32
)

// tokenClaims is the fixed claims schema. Unknown claims in a token are
// ignored and never reach an authorization decision.
type tokenClaims struct {
	Version int    `json:"ver"`
	Role    string `json:"role"`
	UserID  string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// JWTCodecConfig configures a JWTCodec.
type JWTCodecConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	// Leeway tolerates clock skew on exp/iat checks.
	Leeway time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// JWTCodec signs and validates HS256 tokens. It holds no mutable state after
// construction and is safe for concurrent use.
type JWTCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// TokenError is returned by Validate. Reason is for internal logging only;
// callers outside the core see domain.ErrInvalidToken.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid token (%s)", e.Reason)
}

func (e *TokenError) Unwrap() error { return domain.ErrInvalidToken }

// RejectReason exposes Reason to callers that only see an error value.
func (e *TokenError) RejectReason() string { return e.Reason }

var _ ports.TokenCodec = (*JWTCodec)(nil)

func NewJWTCodec(cfg JWTCodecConfig) (*JWTCodec, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", minSecretLength)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	if cfg.Leeway < 0 {
		cfg.Leeway = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &JWTCodec{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Issue signs a token for p. A non-positive ttl uses the configured default.
func (c *JWTCodec) Issue(p domain.Principal, ttl time.Duration) (ports.IssuedToken, error) {
	if p.Username == "" || !p.Role.Valid() {
		return ports.IssuedToken{}, errors.New("jwt: principal needs a username and a valid role")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := c.now().UTC().Truncate(time.Second)
	claims := tokenClaims{
		Version: ClaimsVersion,
		Role:    string(p.Role),
		UserID:  p.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return ports.IssuedToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return ports.IssuedToken{Token: signed, IssuedAt: now, ExpiresAt: now.Add(ttl)}, nil
}

// Validate checks signature, expiry and claim shape, returning the principal
// encoded in the token.
func (c *JWTCodec) Validate(token string) (domain.Principal, error) {
	claims := &tokenClaims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, c.keyFunc)
	if err != nil {
		return domain.Principal{}, &TokenError{Reason: parseReason(err), Err: err}
	}
	if !parsed.Valid {
		return domain.Principal{}, &TokenError{Reason: "invalid"}
	}

	if claims.Version != ClaimsVersion {
		return domain.Principal{}, &TokenError{Reason: "claims_version"}
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Principal{}, &TokenError{Reason: "claims_role"}
	}
	if claims.Subject == "" {
		return domain.Principal{}, &TokenError{Reason: "claims_subject"}
	}

	return domain.Principal{UserID: claims.UserID, Username: claims.Subject, Role: role}, nil
}

func (c *JWTCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return c.secret, nil
}

func parseReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not_yet_valid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	default:
		return "invalid"
	}
}
