// Package password implements password hashing, verification, and the strength
// policy applied before any hash is written.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// If a stored hash was produced with weaker parameters, [Argon2.NeedsRehash]
// returns true so the caller can re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goCred package.
//   - Log plaintext passwords.
package password
