package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/n0rdy/guardian/common"
	"github.com/n0rdy/guardian/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Router struct {
	queuesService     *services.QueuesService
	usersService      *services.UsersService
	monitoringService *services.MonitoringService
	metricsHandler    http.Handler
	authSecret        string
}

// NewRouter builds the admin API router. metricsHandler may be nil if metrics are disabled.
func NewRouter(
	queuesService *services.QueuesService,
	usersService *services.UsersService,
	monitoringService *services.MonitoringService,
	metricsHandler http.Handler,
	authSecret string,
) *Router {
	return &Router{
		queuesService:     queuesService,
		usersService:      usersService,
		monitoringService: monitoringService,
		metricsHandler:    metricsHandler,
		authSecret:        authSecret,
	}
}

func (ar *Router) NewRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthcheck", ar.healthcheck)
	if ar.metricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", ar.metricsHandler)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyTokenAuth(ar.authSecret))

		r.Get("/queues", ar.getQueues)
		r.Route("/users", func(r chi.Router) {
			r.Get("/", ar.getUsers)
			r.Post("/", ar.createUser)
		})
	})

	return router
}

func (ar *Router) getQueues(w http.ResponseWriter, req *http.Request) {
	queues, err := ar.queuesService.GetQueues(req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, queues)
}

func (ar *Router) getUsers(w http.ResponseWriter, req *http.Request) {
	users, err := ar.usersService.GetUsers(req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusOK, users)
}

func (ar *Router) createUser(w http.ResponseWriter, req *http.Request) {
	var newUser common.NewUserRequest
	err := json.NewDecoder(req.Body).Decode(&newUser)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode request body")
		ar.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	user, err := ar.usersService.CreateUser(newUser, req.Context())
	if err != nil {
		ar.sendResponseFromError(w, err)
		return
	}
	ar.sendJsonResponse(w, http.StatusCreated, user)
}

func (ar *Router) healthcheck(w http.ResponseWriter, req *http.Request) {
	if !ar.monitoringService.IsHealthy(req.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ar *Router) sendJsonResponse(w http.ResponseWriter, httpCode int, payload interface{}) {
	respBody, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling response body")
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	w.Write(respBody)
}

func (ar *Router) sendErrorResponse(w http.ResponseWriter, httpCode int, errCode string) {
	ar.sendJsonResponse(w, httpCode, common.ErrorResponse{Code: errCode})
}

func (ar *Router) sendResponseFromError(w http.ResponseWriter, err error) {
	var ge common.GuardianError
	if !errors.As(err, &ge) {
		ar.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
		return
	}

	switch ge.Code {
	case common.ErrCodeBadRequestInvalidBody, common.ErrCodeBadRequestInvalidUsername, common.ErrCodeBadRequestInvalidEmail:
		ar.sendErrorResponse(w, http.StatusBadRequest, ge.Code)
	case common.ErrCodeNotFoundQueue:
		ar.sendErrorResponse(w, http.StatusNotFound, ge.Code)
	case common.ErrCodeConflictUser:
		ar.sendErrorResponse(w, http.StatusConflict, ge.Code)
	default:
		ar.sendErrorResponse(w, http.StatusInternalServerError, ge.Code)
	}
}
