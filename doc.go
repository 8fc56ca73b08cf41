// Package goCred provides a credential lifecycle engine: account registration
// with email verification, password login that issues signed access tokens,
// logout through a Redis denylist, and password reset and change.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goCred is the public surface. It exposes [Engine], [Builder], [Config], the
// [UserDirectory] and [Notifier] collaborator interfaces, and value types such
// as [SubjectView] and [MetricsSnapshot]. Token encoding lives in the jwt and
// token packages, password hashing in password, the denylist in revocation.
// Account storage is supplied by the caller; userstore/memory,
// userstore/postgres and userstore/sqlite ship with the module.
//
// # Tokens
//
// Access tokens carry the subject id, handle and role and live for
// Config.Token.AccessTTL. Every ValidateAccess performs one Redis lookup of the
// token id; if Redis cannot answer the token is refused with KindUnavailable.
//
// Verification and reset links carry action tokens signed under a key derived
// for their purpose, so one kind never validates as another. They expire after
// five minutes by default. Unless Config.ActionTokens.SingleUse is set a link
// can be followed again until it expires.
//
// # What this package must NOT do
//
//   - Log passwords, hashes or full tokens.
//   - Block a request on email delivery; notifications go through a bounded
//     background queue.
//   - Import any sub-package that re-imports goCred (no import cycles).
package goCred
