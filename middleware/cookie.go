package middleware

import (
	"net/http"
	"strings"
	"time"
)

// AccessCookieName is the cookie that carries the access token.
const AccessCookieName = "access_token"

// CookieOptions controls the attributes of the access cookie.
type CookieOptions struct {
	// Insecure drops the Secure attribute. Only for plain HTTP development.
	Insecure bool
	Domain   string
	Path     string
}

func (o CookieOptions) path() string {
	if o.Path == "" {
		return "/"
	}
	return o.Path
}

// SetAccessCookie stores token in the access cookie for maxAge.
func SetAccessCookie(w http.ResponseWriter, token string, maxAge time.Duration, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     opts.path(),
		Domain:   opts.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   !opts.Insecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAccessCookie expires the access cookie.
func ClearAccessCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    "",
		Path:     opts.path(),
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !opts.Insecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AccessTokenFromRequest returns the access token of r. The cookie wins over
// the Authorization header.
func AccessTokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
