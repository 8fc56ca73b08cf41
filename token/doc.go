// Package token issues and verifies the two credential kinds of the engine:
// access tokens, which are revocable through a denylist, and purpose-scoped
// action tokens used in email verification and password reset links.
//
// Every verification checks the signature locally first. The revocation store
// is only consulted for tokens that already decoded, so forged or expired
// input never costs a network round trip.
package token
