package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestCodec(t *testing.T, mutate func(*Config)) *Codec {
	t.Helper()
	cfg := Config{
		Secret:          []byte("0123456789abcdef0123456789abcdef"),
		Issuer:          "stellar-auth-service",
		Audience:        "stellar-users",
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
		Leeway:          30 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

var testSubject = Subject{UserID: "u1", Email: "Alice@Example.com", Role: "user"}
var testBinding = Binding{UserAgent: "test-agent", IP: "10.0.0.1"}

func TestMintAndVerifyAllKinds(t *testing.T) {
	c := newTestCodec(t, nil)

	for _, kind := range []Kind{KindAccess, KindRefresh, KindVerification, KindReset} {
		tok, err := c.Mint(kind, testSubject, testBinding)
		if err != nil {
			t.Fatalf("mint %s: %v", kind, err)
		}

		var claims *Claims
		if kind == KindVerification || kind == KindReset {
			claims, err = c.VerifyEmailBound(kind, tok, "alice@example.com")
		} else {
			claims, err = c.Verify(kind, tok, testBinding)
		}
		if err != nil {
			t.Fatalf("verify %s: %v", kind, err)
		}
		if claims.Kind != kind {
			t.Fatalf("kind = %q, want %q", claims.Kind, kind)
		}
		if claims.Subject != "u1" {
			t.Fatalf("subject = %q, want u1", claims.Subject)
		}
		if claims.ID == "" {
			t.Fatalf("%s token minted without jti", kind)
		}
	}
}

func TestVerifyRejectsKindConfusion(t *testing.T) {
	c := newTestCodec(t, nil)

	refresh, err := c.Mint(KindRefresh, testSubject, testBinding)
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	if _, err := c.Verify(KindAccess, refresh, testBinding); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("refresh as access: got %v, want ErrKindMismatch", err)
	}

	// A reset token must not complete email verification.
	reset, err := c.Mint(KindReset, testSubject, Binding{})
	if err != nil {
		t.Fatalf("mint reset: %v", err)
	}
	if _, err := c.VerifyEmailBound(KindVerification, reset, "alice@example.com"); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("reset as verification: got %v, want ErrKindMismatch", err)
	}
}

func TestVerifyStrictBindingMismatch(t *testing.T) {
	c := newTestCodec(t, func(cfg *Config) { cfg.StrictBinding = true })

	tok, err := c.Mint(KindAccess, testSubject, testBinding)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := c.Verify(KindAccess, tok, testBinding); err != nil {
		t.Fatalf("same binding rejected: %v", err)
	}
	stolen := Binding{UserAgent: "other-agent", IP: "192.168.1.99"}
	if _, err := c.Verify(KindAccess, tok, stolen); !errors.Is(err, ErrContextMismatch) {
		t.Fatalf("foreign binding: got %v, want ErrContextMismatch", err)
	}
}

func TestVerifyLaxBindingMismatchAllowed(t *testing.T) {
	c := newTestCodec(t, nil)

	tok, err := c.Mint(KindAccess, testSubject, testBinding)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := c.Verify(KindAccess, tok, Binding{UserAgent: "other", IP: "1.2.3.4"}); err != nil {
		t.Fatalf("lax mode should tolerate binding drift: %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	c := newTestCodec(t, nil)
	minted := time.Now().Add(-time.Hour)
	c.now = func() time.Time { return minted }

	tok, err := c.Mint(KindAccess, testSubject, testBinding)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	c.now = time.Now
	if _, err := c.Verify(KindAccess, tok, testBinding); !errors.Is(err, ErrExpired) {
		t.Fatalf("got %v, want ErrExpired", err)
	}
}

func TestVerifyLeewayTolerance(t *testing.T) {
	c := newTestCodec(t, func(cfg *Config) {
		cfg.AccessTTL = time.Minute
		cfg.Leeway = 30 * time.Second
	})
	minted := time.Now().Add(-75 * time.Second) // expired 15s ago, inside leeway
	c.now = func() time.Time { return minted }

	tok, err := c.Mint(KindAccess, testSubject, testBinding)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	c.now = time.Now
	if _, err := c.Verify(KindAccess, tok, testBinding); err != nil {
		t.Fatalf("token inside leeway rejected: %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	c := newTestCodec(t, nil)

	claims := Claims{
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "stellar-auth-service",
			Audience:  jwt.ClaimStrings{"stellar-users"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := tok.SignedString([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := c.Verify(KindAccess, signed, testBinding); !errors.Is(err, ErrAlgorithmRejected) {
		t.Fatalf("got %v, want ErrAlgorithmRejected", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	c := newTestCodec(t, nil)
	other := newTestCodec(t, func(cfg *Config) {
		cfg.Secret = []byte("ffffffffffffffffffffffffffffffff")
	})

	tok, err := other.Mint(KindAccess, testSubject, testBinding)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := c.Verify(KindAccess, tok, testBinding); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestVerifyEmailBoundRejectsOtherEmail(t *testing.T) {
	c := newTestCodec(t, nil)

	// Reset token issued to userA must not reset userB's password.
	tok, err := c.Mint(KindReset, Subject{UserID: "ua", Email: "usera@example.com"}, Binding{})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := c.VerifyEmailBound(KindReset, tok, "userb@example.com"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
	if _, err := c.VerifyEmailBound(KindReset, tok, "USERA@example.com"); err != nil {
		t.Fatalf("case-folded match rejected: %v", err)
	}

	// Emails of a different length fail the same way as same-length
	// mismatches: the compare runs over fixed-size digests.
	if _, err := c.VerifyEmailBound(KindReset, tok, "a@b.co"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestVerifySecretSeparation(t *testing.T) {
	verifySecret := []byte("an-entirely-separate-32-byte-keyz")
	c := newTestCodec(t, func(cfg *Config) { cfg.VerifySecret = verifySecret })

	// A verification token signed with the pair secret must not parse.
	forged := newTestCodec(t, nil) // VerifySecret defaults to Secret
	tok, err := forged.Mint(KindVerification, testSubject, Binding{})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := c.VerifyEmailBound(KindVerification, tok, "alice@example.com"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestMintOneTimeReportsJTI(t *testing.T) {
	c := newTestCodec(t, nil)

	tok, jti, expiresAt, err := c.MintOneTime(KindVerification, testSubject)
	if err != nil {
		t.Fatalf("mint one-time: %v", err)
	}
	if jti == "" {
		t.Fatal("empty jti")
	}
	claims, err := c.VerifyEmailBound(KindVerification, tok, "alice@example.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ID != jti {
		t.Fatalf("claims jti = %q, reported %q", claims.ID, jti)
	}
	if !claims.ExpiresAt.Time.Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("claims exp = %v, reported %v", claims.ExpiresAt.Time, expiresAt)
	}

	if _, _, _, err := c.MintOneTime(KindAccess, testSubject); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("access as one-time: got %v, want ErrKindMismatch", err)
	}
}

func TestHashBinding(t *testing.T) {
	if got := HashBinding("test-agent"); len(got) != bindingHashLen {
		t.Fatalf("hash length = %d, want %d", len(got), bindingHashLen)
	}
	if HashBinding("") != HashBinding("unknown") {
		t.Fatal("empty input must hash the unknown placeholder")
	}
	if HashBinding("a") == HashBinding("b") {
		t.Fatal("distinct inputs collided")
	}
}
