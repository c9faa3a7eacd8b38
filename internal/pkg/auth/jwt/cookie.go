package jwt

import (
	"net/http"
	"time"
)

// CookieName is the name of the cookie holding the identity token.
const CookieName = "jwt"

// SetAuthCookie stores token in an HttpOnly cookie. secure is false only in
// development, where the frontend is served over plain HTTP.
func SetAuthCookie(w http.ResponseWriter, token string, secure bool) {
	sameSite := http.SameSiteNoneMode
	if !secure {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(UserIdentityExpiration / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

// ClearAuthCookie expires the identity cookie.
func ClearAuthCookie(w http.ResponseWriter, secure bool) {
	sameSite := http.SameSiteNoneMode
	if !secure {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
