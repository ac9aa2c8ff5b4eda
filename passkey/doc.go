// Package passkey coordinates WebAuthn registration and authentication ceremonies.
//
// A [Coordinator] issues options containing a fresh challenge, records that challenge
// in a [challenge.Store] with a TTL, and on completion consumes it atomically before
// handing the response to a [Verifier]. Because consumption happens first, a replayed
// response, a second concurrent completion, or a completion after expiry all fail with
// [ErrChallengeNotFound]. A failed verification still burns the challenge; the client
// must begin a new ceremony.
//
// The default verifier is backed by github.com/go-webauthn/webauthn. Credential
// persistence is the caller's job: [VerifiedRegistration] carries everything needed to
// build the [AuthenticatorState] later passed to [Coordinator.CompleteAuthentication].
package passkey
