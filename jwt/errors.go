package jwt

import (
	"errors"
	"fmt"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is matched by every verification failure.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformed reports a token that is not a well-formed JWT.
	ErrMalformed = errors.New("token malformed")
	// ErrAlgorithmNotAllowed reports a header algorithm outside the allow-list.
	ErrAlgorithmNotAllowed = errors.New("token algorithm not allowed")
	// ErrSignatureInvalid reports a signature that does not verify under the secret.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired reports an exp claim in the past or a missing exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotValidYet reports nbf or iat claims in the future.
	ErrTokenNotValidYet = errors.New("token not valid yet")
	// ErrIssuerMismatch reports an iss claim that differs from the expected issuer.
	ErrIssuerMismatch = errors.New("token issuer mismatch")
	// ErrAudienceMismatch reports an aud claim that does not contain the expected audience.
	ErrAudienceMismatch = errors.New("token audience mismatch")
	// ErrClaimMissing reports a required claim (exp, or iss/aud when expected) that is absent.
	ErrClaimMissing = errors.New("token required claim missing")
	// ErrUnknownKey reports a kid header that is missing or not configured.
	ErrUnknownKey = errors.New("token key id unknown")

	// ErrEmptySecret is returned when signing or verifying with an empty secret.
	ErrEmptySecret = errors.New("jwt secret must not be empty")
	// ErrInvalidExpiry is returned for negative or unparsable expiries.
	ErrInvalidExpiry = errors.New("invalid token expiry")
)

func invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, reason)
}

// mapParseError translates golang-jwt parser errors into package sentinels.
func mapParseError(token *gjwt.Token, allowed []string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return err
	case errors.Is(err, ErrUnknownKey):
		return invalid(ErrUnknownKey)
	case errors.Is(err, ErrAlgorithmNotAllowed):
		return invalid(ErrAlgorithmNotAllowed)
	case errors.Is(err, gjwt.ErrTokenMalformed):
		return invalid(ErrMalformed)
	case errors.Is(err, gjwt.ErrTokenSignatureInvalid):
		if token != nil && !algorithmAllowed(headerAlgorithm(token), allowed) {
			return invalid(ErrAlgorithmNotAllowed)
		}
		return invalid(ErrSignatureInvalid)
	case errors.Is(err, gjwt.ErrTokenUnverifiable):
		return invalid(ErrAlgorithmNotAllowed)
	case errors.Is(err, gjwt.ErrTokenExpired):
		return invalid(ErrTokenExpired)
	case errors.Is(err, gjwt.ErrTokenNotValidYet), errors.Is(err, gjwt.ErrTokenUsedBeforeIssued):
		return invalid(ErrTokenNotValidYet)
	case errors.Is(err, gjwt.ErrTokenInvalidIssuer):
		return invalid(ErrIssuerMismatch)
	case errors.Is(err, gjwt.ErrTokenInvalidAudience):
		return invalid(ErrAudienceMismatch)
	case errors.Is(err, gjwt.ErrTokenRequiredClaimMissing):
		return invalid(ErrClaimMissing)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func headerAlgorithm(token *gjwt.Token) string {
	if token == nil {
		return ""
	}
	alg, _ := token.Header["alg"].(string)
	return alg
}
