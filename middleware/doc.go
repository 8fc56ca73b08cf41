// Package middleware adapts goCred.Engine to net/http.
//
// # Guard
//
// [Guard] reads the access token from the access_token cookie, falling back to
// an Authorization: Bearer header, calls Engine.ValidateAccess, and injects the
// [goCred.AuthResult] into the request context. Any failure is a 401 with a
// generic body; the reason never reaches the client.
//
// # Cookies
//
// [SetAccessCookie] and [ClearAccessCookie] write the access_token cookie with
// HttpOnly and SameSite=Lax. Secure is on unless [CookieOptions.Insecure] is set
// for local development.
//
// This package holds no authentication logic of its own.
package middleware
