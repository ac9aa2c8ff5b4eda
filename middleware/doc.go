// Package middleware adapts Engine token validation to net/http.
//
// # Guards
//
//   - [Guard] rejects requests without a valid bearer token.
//   - [Optional] attaches claims when a valid token is present.
//   - [ClientIP] records the remote address for reset throttling.
//
// Validated claims are read back with [ClaimsFromContext].
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly. Every decision goes through Engine.ValidateToken.
//   - Make authorization decisions beyond accept or reject.
package middleware
