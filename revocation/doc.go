// Package revocation holds the denylist of revoked token identifiers and the
// single-use markers of consumed action tokens.
//
// Entries carry a TTL equal to the remaining lifetime of the token they cover,
// so the store never grows beyond the set of tokens that could still verify.
// Lookups fail closed: a backend error is reported as ErrUnavailable and must
// be treated by callers as a rejection.
package revocation
