package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Kind selects which token class an Issuer operation applies to. Access and
// refresh tokens are signed with independent secrets so that compromise of
// one class cannot forge the other.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// ErrInvalid is returned for any token that fails parsing, signature
// verification, or claim validation (including expiry).
var ErrInvalid = errors.New("invalid or expired token")

// Pair is the result of issuing both token classes for one identity.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer mints and verifies the two token classes. It has no storage side
// effects; persisting refresh tokens is the caller's concern.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewIssuer builds an Issuer from the two signing secrets and TTLs.
func NewIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration, issuer string) *Issuer {
	return &Issuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		now:           time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// IssuePair mints a short-lived access token and a long-lived refresh token
// bound to userID.
func (i *Issuer) IssuePair(userID int64) (Pair, error) {
	access, err := i.sign(userID, Access)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := i.sign(userID, Refresh)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, issuer, and expiry for the given token class and
// returns the encoded user ID. Any failure maps to ErrInvalid.
func (i *Issuer) Verify(raw string, kind Kind) (int64, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return 0, ErrInvalid
	}

	var claims gojwt.Claims
	var custom tokenClaims
	if err := parsed.Claims(i.secret(kind), &claims, &custom); err != nil {
		return 0, ErrInvalid
	}
	if custom.Kind != kind {
		return 0, ErrInvalid
	}
	if err := claims.ValidateWithLeeway(gojwt.Expected{
		Issuer: i.issuer,
		Time:   i.now(),
	}, 0); err != nil {
		return 0, ErrInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalid
	}
	return userID, nil
}

type tokenClaims struct {
	Kind Kind `json:"tkn"`
}

func (i *Issuer) sign(userID int64, kind Kind) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: i.secret(kind)},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := i.now().UTC()
	claims := gojwt.Claims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    i.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(i.ttl(kind))),
	}

	serialized, err := gojwt.Signed(signer).Claims(claims).Claims(tokenClaims{Kind: kind}).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return serialized, nil
}

func (i *Issuer) secret(kind Kind) []byte {
	if kind == Refresh {
		return i.refreshSecret
	}
	return i.accessSecret
}

func (i *Issuer) ttl(kind Kind) time.Duration {
	if kind == Refresh {
		return i.refreshTTL
	}
	return i.accessTTL
}
