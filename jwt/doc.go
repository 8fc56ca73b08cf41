// Package jwt signs and verifies compact HMAC tokens with per-salt derived keys
// and strict algorithm, signature, and lifetime validation.
package jwt
