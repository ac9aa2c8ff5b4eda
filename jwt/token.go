package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

const (
	// AlgHS256 is the only algorithm Sign produces.
	AlgHS256 = "HS256"
	// AlgHS384 may be listed in VerifyOptions.AllowedAlgorithms.
	AlgHS384 = "HS384"
	// AlgHS512 may be listed in VerifyOptions.AllowedAlgorithms.
	AlgHS512 = "HS512"

	// DefaultExpiry is applied when Sign is called with a zero expiry.
	DefaultExpiry = time.Hour

	algNone = "none"
)

// Payload carries the subject fields embedded in a token.
type Payload struct {
	UserID string
	Email  string
	Extra  map[string]any
}

// Claims is the decoded form of a session token.
type Claims struct {
	UserID string         `json:"uid"`
	Email  string         `json:"email,omitempty"`
	Extra  map[string]any `json:"ext,omitempty"`
	gjwt.RegisteredClaims
}

// Payload returns the subject fields of c.
func (c *Claims) Payload() Payload {
	if c == nil {
		return Payload{}
	}
	return Payload{UserID: c.UserID, Email: c.Email, Extra: c.Extra}
}

// SignOptions adds optional registered claims to a signed token.
type SignOptions struct {
	Issuer   string
	Audience string
	// KeyID is written to the kid header when set.
	KeyID string
}

// VerifyOptions constrains what Verify accepts. The zero value allows HS256 only and
// applies no issuer or audience constraint.
type VerifyOptions struct {
	AllowedAlgorithms []string
	Issuer            string
	Audience          string
	Leeway            time.Duration
	RequireIssuedAt   bool
}

// Sign returns an HS256 token for payload that expires after expiry.
//
// A zero expiry selects DefaultExpiry. Issuer and audience claims are embedded only
// when set in opts.
func Sign(payload Payload, secret []byte, expiry time.Duration, opts SignOptions) (string, error) {
	return sign(payload, secret, expiry, opts, time.Now())
}

func sign(payload Payload, secret []byte, expiry time.Duration, opts SignOptions, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	if expiry < 0 {
		return "", ErrInvalidExpiry
	}
	if expiry == 0 {
		expiry = DefaultExpiry
	}

	jti, err := newTokenID()
	if err != nil {
		return "", err
	}

	claims := Claims{
		UserID: payload.UserID,
		Email:  payload.Email,
		Extra:  payload.Extra,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   payload.UserID,
			Issuer:    opts.Issuer,
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(expiry)),
			ID:        jti,
		},
	}
	if opts.Audience != "" {
		claims.Audience = gjwt.ClaimStrings{opts.Audience}
	}

	token := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	if opts.KeyID != "" {
		token.Header["kid"] = opts.KeyID
	}

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, expiry and configured claims of token.
//
// All failures match ErrInvalidToken.
func Verify(token string, secret []byte, opts VerifyOptions) (*Claims, error) {
	if len(secret) == 0 {
		return nil, invalid(ErrEmptySecret)
	}
	return verify(token, func(string) ([]byte, error) { return secret, nil }, opts)
}

// Decode parses token without verifying its signature or claims.
//
// Decode returns nil for anything that is not a structurally valid JWT.
func Decode(token string) *Claims {
	if token == "" {
		return nil
	}

	claims := &Claims{}
	if _, _, err := gjwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func verify(tokenStr string, secretFor func(kid string) ([]byte, error), opts VerifyOptions) (*Claims, error) {
	allowed := AllowedAlgorithms(opts.AllowedAlgorithms)
	if len(allowed) == 0 {
		return nil, invalid(ErrAlgorithmNotAllowed)
	}

	options := []gjwt.ParserOption{
		gjwt.WithValidMethods(allowed),
		gjwt.WithExpirationRequired(),
	}
	if opts.Leeway > 0 {
		options = append(options, gjwt.WithLeeway(opts.Leeway))
	}
	if opts.RequireIssuedAt {
		options = append(options, gjwt.WithIssuedAt())
	}
	if opts.Issuer != "" {
		options = append(options, gjwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		options = append(options, gjwt.WithAudience(opts.Audience))
	}

	parser := gjwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *gjwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*gjwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgorithmNotAllowed
		}
		if !algorithmAllowed(t.Method.Alg(), allowed) {
			return nil, ErrAlgorithmNotAllowed
		}

		kid, _ := t.Header["kid"].(string)
		secret, err := secretFor(kid)
		if err != nil {
			return nil, err
		}
		if len(secret) == 0 {
			return nil, ErrUnknownKey
		}
		return secret, nil
	})
	if err != nil {
		return nil, mapParseError(token, allowed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, invalid(ErrMalformed)
	}
	return claims, nil
}

// AllowedAlgorithms normalizes an allow-list: empty input selects HS256, "none" and
// non-HMAC algorithms are dropped, duplicates are removed.
func AllowedAlgorithms(requested []string) []string {
	if len(requested) == 0 {
		return []string{AlgHS256}
	}

	out := make([]string, 0, len(requested))
	for _, alg := range requested {
		alg = strings.TrimSpace(alg)
		if strings.EqualFold(alg, algNone) {
			continue
		}
		if _, ok := gjwt.GetSigningMethod(alg).(*gjwt.SigningMethodHMAC); !ok {
			continue
		}
		if algorithmAllowed(alg, out) {
			continue
		}
		out = append(out, alg)
	}
	return out
}

func algorithmAllowed(alg string, allowed []string) bool {
	if alg == "" || strings.EqualFold(alg, algNone) {
		return false
	}
	for _, a := range allowed {
		if a == alg {
			return true
		}
	}
	return false
}

func newTokenID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
