// Package jwt signs and verifies compact HMAC session tokens.
//
// Verification never trusts the algorithm named in the token header: the parser is
// pinned to a caller supplied allow-list (HS256 by default) and the unsigned "none"
// algorithm is always rejected, even when a caller lists it. Issuer and audience are
// enforced only when configured; an empty value means "no constraint".
//
// Every verification failure matches [ErrInvalidToken] through errors.Is and also
// carries a reason sentinel such as [ErrTokenExpired] or [ErrAlgorithmNotAllowed].
//
// [Decode] performs a structural, unverified parse for logging and introspection. Its
// result must never drive an authorization decision.
package jwt
