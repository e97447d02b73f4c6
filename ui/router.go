package ui

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/n0rdy/guardian/common"
	"github.com/n0rdy/guardian/services"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/nosurf"
	"github.com/rs/zerolog/log"
)

type Router struct {
	queuesService   *services.QueuesService
	usersService    *services.UsersService
	sessionsService *services.SessionsService
	authSecret      string
}

func NewRouter(
	queuesService *services.QueuesService,
	usersService *services.UsersService,
	sessionsService *services.SessionsService,
	authSecret string,
) *Router {
	return &Router{
		queuesService:   queuesService,
		usersService:    usersService,
		sessionsService: sessionsService,
		authSecret:      authSecret,
	}
}

// NewRouter builds the UI routes. They are meant to be mounted under /ui.
func (ur *Router) NewRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Use(csrfProtection)

	// Unprotected login routes
	router.Get("/login", ur.loginPage)
	router.Post("/login", ur.processLogin)
	router.Post("/logout", ur.processLogout)

	router.Group(func(r chi.Router) {
		r.Use(sessionAuth(ur.sessionsService))
		r.Get("/", ur.dashboard)
		r.Get("/users", ur.usersPage)
		r.Post("/users", ur.createUser)
	})

	return router
}

func (ur *Router) loginPage(w http.ResponseWriter, req *http.Request) {
	RenderTemplate(w, http.StatusOK, "login.html", common.LoginPageData{
		Title:     "Login",
		CsrfToken: nosurf.Token(req),
	})
}

func (ur *Router) processLogin(w http.ResponseWriter, req *http.Request) {
	token := req.PostFormValue("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(ur.authSecret)) != 1 {
		log.Error().Msg("invalid login token")
		RenderTemplate(w, http.StatusUnauthorized, "login.html", common.LoginPageData{
			Title:     "Login",
			Error:     "Invalid authentication token",
			CsrfToken: nosurf.Token(req),
		})
		return
	}

	sessionId, expiresAt := ur.sessionsService.CreateSession()
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    sessionId,
		Path:     "/",
		Expires:  time.UnixMilli(expiresAt),
		HttpOnly: true,
		Secure:   req.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, req, "/ui", http.StatusSeeOther)
}

func (ur *Router) processLogout(w http.ResponseWriter, req *http.Request) {
	sessionCookie, _ := req.Cookie(common.SessionCookieName)
	if sessionCookie != nil {
		ur.sessionsService.InvalidateSession(sessionCookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, req, "/ui/login", http.StatusSeeOther)
}

func (ur *Router) dashboard(w http.ResponseWriter, req *http.Request) {
	data, err := ur.queuesService.GetDashboard(req.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load dashboard")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data.CsrfToken = nosurf.Token(req)
	RenderTemplate(w, http.StatusOK, "dashboard.html", data)
}

func (ur *Router) usersPage(w http.ResponseWriter, req *http.Request) {
	ur.renderUsers(w, req, http.StatusOK, "")
}

func (ur *Router) createUser(w http.ResponseWriter, req *http.Request) {
	_, err := ur.usersService.CreateUser(common.NewUserRequest{
		Username: req.PostFormValue("username"),
		Email:    req.PostFormValue("email"),
	}, req.Context())
	if err != nil {
		switch {
		case errors.Is(err, common.ErrBadRequestInvalidUsername):
			ur.renderUsers(w, req, http.StatusBadRequest, "Invalid username")
		case errors.Is(err, common.ErrBadRequestInvalidEmail):
			ur.renderUsers(w, req, http.StatusBadRequest, "Invalid email")
		case errors.Is(err, common.ErrConflictUser):
			ur.renderUsers(w, req, http.StatusConflict, "User already exists")
		default:
			log.Error().Err(err).Msg("failed to create user from UI")
			ur.renderUsers(w, req, http.StatusInternalServerError, "Failed to create user")
		}
		return
	}

	http.Redirect(w, req, "/ui/users", http.StatusSeeOther)
}

func (ur *Router) renderUsers(w http.ResponseWriter, req *http.Request, status int, errMsg string) {
	users, err := ur.usersService.GetUsers(req.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load users")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	RenderTemplate(w, status, "users.html", common.UsersPageData{
		Title:     "Users",
		CsrfToken: nosurf.Token(req),
		Error:     errMsg,
		Users:     users,
	})
}
