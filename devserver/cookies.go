package devserver

import (
	"net/http"
)

// setCookies writes both credentials. The refresh cookie is HttpOnly; the
// access cookie stays readable so the client can schedule its refresh.
func (s *Server) setCookies(w http.ResponseWriter, access, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetAccessCookieName(),
		Value:    access,
		Path:     "/",
		MaxAge:   int(s.config.GetAccessTokenExpiry().Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   s.env != "DEV",
	})
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetRefreshCookieName(),
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(s.refresh.Expiry().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.env != "DEV",
	})
}

func (s *Server) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{s.config.GetAccessCookieName(), s.config.GetRefreshCookieName()} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
}
