package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the four token kinds minted by the codec. The value
// is embedded verbatim in the "type" claim.
type Kind string

const (
	// KindAccess is a short-lived token carrying identity claims.
	KindAccess Kind = "access"
	// KindRefresh is a long-lived token that entitles the holder to a
	// fresh access/refresh pair.
	KindRefresh Kind = "refresh"
	// KindVerification proves control of an email address during
	// email verification.
	KindVerification Kind = "verification"
	// KindReset proves control of an email address during password reset.
	KindReset Kind = "password_reset"
)

const bindingHashLen = 16

var (
	// ErrExpired indicates the token's expiry (minus leeway) has passed.
	ErrExpired = errors.New("token has expired")
	// ErrMalformed covers bad signatures and structural invalidity.
	ErrMalformed = errors.New("invalid token")
	// ErrAlgorithmRejected indicates the token declared a signing
	// algorithm other than HS256.
	ErrAlgorithmRejected = errors.New("invalid token algorithm")
	// ErrContextMismatch indicates the binding hashes do not match the
	// live request context.
	ErrContextMismatch = errors.New("token context mismatch - possible token theft detected")
	// ErrKindMismatch indicates the "type" claim does not match the kind
	// the caller expected.
	ErrKindMismatch = errors.New("invalid token type")
)

// Config holds codec-wide signing and validation policy.
//
// Config instances are set once at construction and treated as immutable.
type Config struct {
	// Secret signs access and refresh tokens. Must be at least 32 bytes.
	Secret []byte
	// VerifySecret signs verification and reset tokens. Defaults to
	// Secret when empty, but a separate secret limits the blast radius
	// of a leak.
	VerifySecret []byte

	Issuer   string
	Audience string

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration

	// Leeway is the clock-skew tolerance applied on verify. At most two
	// minutes.
	Leeway time.Duration

	// StrictBinding makes binding-hash mismatches fatal on verify. Off,
	// mismatches are reported to the caller through Claims only.
	StrictBinding bool
}

// Claims is the decoded claim set shared by all four token kinds. Kind
// tells the caller which optional fields are populated.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Kind  Kind   `json:"type"`

	// UAHash and IPHash are truncated sha256 digests of the minting
	// client's User-Agent and IP. Present on access/refresh kinds only.
	UAHash string `json:"ua,omitempty"`
	IPHash string `json:"ip,omitempty"`

	jwt.RegisteredClaims
}

// Binding carries the client context a token is bound to. Empty fields
// are normalized to "unknown" before hashing so that a token minted
// without context still verifies against a context-free request.
type Binding struct {
	UserAgent string
	IP        string
}

// Subject identifies the account a token is minted for.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// Codec mints and verifies signed tokens. Safe for concurrent use.
type Codec struct {
	config Config
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token signing secret must be at least 32 bytes")
	}
	if len(cfg.VerifySecret) == 0 {
		cfg.VerifySecret = cfg.Secret
	} else if len(cfg.VerifySecret) < 32 {
		return nil, errors.New("token verify secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.VerificationTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("audience required")
	}

	return &Codec{config: cfg, now: time.Now}, nil
}

// HashBinding reduces a client context value to its binding claim form:
// hex(sha256(v)) truncated to 16 characters. Empty input hashes the
// placeholder "unknown" so absent context stays self-consistent.
func HashBinding(v string) string {
	if v == "" {
		v = "unknown"
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])[:bindingHashLen]
}

// Mint builds and signs a token of the given kind. The binding argument
// is embedded on access/refresh kinds and ignored for verification/reset
// kinds, which are email-bound instead.
func (c *Codec) Mint(kind Kind, sub Subject, binding Binding) (string, error) {
	if sub.UserID == "" {
		return "", errors.New("subject user id required")
	}

	now := c.now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ID:        uuid.NewString(),
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl(kind))),
		},
	}

	switch kind {
	case KindAccess:
		claims.Email = strings.ToLower(sub.Email)
		claims.Role = sub.Role
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
		claims.UAHash = HashBinding(binding.UserAgent)
		claims.IPHash = HashBinding(binding.IP)
	case KindRefresh:
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
		claims.UAHash = HashBinding(binding.UserAgent)
		claims.IPHash = HashBinding(binding.IP)
	case KindVerification, KindReset:
		// No audience: emailed links outlive the audience the pair
		// tokens are scoped to. Email binding replaces context binding.
		claims.Email = strings.ToLower(sub.Email)
	default:
		return "", ErrKindMismatch
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secretFor(kind))
}

// MintOneTime mints a verification or reset token and reports its jti
// and expiry, so the caller can record single-use state keyed by the
// jti alongside the emailed token.
func (c *Codec) MintOneTime(kind Kind, sub Subject) (tokenStr, tokenID string, expiresAt time.Time, err error) {
	if kind != KindVerification && kind != KindReset {
		return "", "", time.Time{}, ErrKindMismatch
	}
	if sub.UserID == "" {
		return "", "", time.Time{}, errors.New("subject user id required")
	}

	now := c.now()
	expiresAt = now.Add(c.ttl(kind))
	claims := Claims{
		Kind:  kind,
		Email: strings.ToLower(sub.Email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ID:        uuid.NewString(),
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err = tok.SignedString(c.secretFor(kind))
	if err != nil {
		return "", "", time.Time{}, err
	}
	return tokenStr, claims.ID, expiresAt, nil
}

// Verify parses and validates a token, requiring its kind claim to equal
// kind. For access/refresh kinds the binding hashes are recomputed from
// binding; in strict mode a mismatch fails with [ErrContextMismatch].
func (c *Codec) Verify(kind Kind, tokenStr string, binding Binding) (*Claims, error) {
	claims, err := c.parse(kind, tokenStr)
	if err != nil {
		return nil, err
	}

	if kind == KindAccess || kind == KindRefresh {
		uaOK := subtle.ConstantTimeCompare([]byte(claims.UAHash), []byte(HashBinding(binding.UserAgent))) == 1
		ipOK := subtle.ConstantTimeCompare([]byte(claims.IPHash), []byte(HashBinding(binding.IP))) == 1
		if c.config.StrictBinding && (!uaOK || !ipOK) {
			return nil, ErrContextMismatch
		}
	}

	return claims, nil
}

// VerifyEmailBound validates a verification or reset token against the
// email the caller expects it to be bound to. Both sides are case-folded
// and length-equalized before a timing-safe compare, so the check leaks
// nothing about which emails exist.
func (c *Codec) VerifyEmailBound(kind Kind, tokenStr, expectedEmail string) (*Claims, error) {
	if kind != KindVerification && kind != KindReset {
		return nil, ErrKindMismatch
	}

	claims, err := c.parse(kind, tokenStr)
	if err != nil {
		return nil, err
	}

	// Hashing both sides equalizes length before the timing-safe compare,
	// so a mismatch takes the same time regardless of how the emails differ.
	got := sha256.Sum256([]byte(strings.ToLower(claims.Email)))
	want := sha256.Sum256([]byte(strings.ToLower(expectedEmail)))
	if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
		return nil, ErrMalformed
	}

	return claims, nil
}

func (c *Codec) parse(kind Kind, tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithIssuer(c.config.Issuer),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if kind == KindAccess || kind == KindRefresh {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrAlgorithmRejected
		}
		return c.secretFor(kind), nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != kind {
		return nil, ErrKindMismatch
	}

	return claims, nil
}

func (c *Codec) ttl(kind Kind) time.Duration {
	switch kind {
	case KindAccess:
		return c.config.AccessTTL
	case KindRefresh:
		return c.config.RefreshTTL
	case KindVerification:
		return c.config.VerificationTTL
	default:
		return c.config.ResetTTL
	}
}

func (c *Codec) secretFor(kind Kind) []byte {
	if kind == KindVerification || kind == KindReset {
		return c.config.VerifySecret
	}
	return c.config.Secret
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrAlgorithmRejected):
		return ErrAlgorithmRejected
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrMalformed
	default:
		return ErrMalformed
	}
}
