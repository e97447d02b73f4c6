package ui

import (
	"net/http"

	"github.com/n0rdy/guardian/common"
	"github.com/n0rdy/guardian/services"

	"github.com/justinas/nosurf"
	"github.com/rs/zerolog/log"
)

// sessionAuth middleware for UI routes
func sessionAuth(sessionsService *services.SessionsService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sessionCookie, err := req.Cookie(common.SessionCookieName)
			if err != nil || !sessionsService.IsSessionValid(sessionCookie.Value) {
				http.Redirect(w, req, "/ui/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// csrfProtection rejects unsafe form submissions that don't carry the token rendered into the page.
func csrfProtection(next http.Handler) http.Handler {
	csrfHandler := nosurf.New(next)
	// the same-origin check compares against https unless told otherwise
	csrfHandler.SetIsTLSFunc(func(req *http.Request) bool {
		return req.TLS != nil
	})
	csrfHandler.SetBaseCookie(http.Cookie{
		Path:     "/ui",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.Warn().Err(nosurf.Reason(req)).Str("path", req.URL.Path).Msg("CSRF check failed")
		http.Error(w, "Bad request", http.StatusBadRequest)
	}))
	return csrfHandler
}
