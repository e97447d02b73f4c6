package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/n0rdy/guardian/common"

	"github.com/rs/zerolog/log"
)

var (
	unauthorizedRespBody []byte
)

func init() {
	var err error
	unauthorizedRespBody, err = json.Marshal(common.ErrorResponse{Code: common.ErrCodeUnauthorized})
	if err != nil {
		panic(err)
	}
}

func apiKeyTokenAuth(authSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			apiKey := req.Header.Get(common.ApiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(authSecret)) != 1 {
				log.Error().Str("path", req.URL.Path).Msg("invalid API key")
				sendUnauthorizedErrorResponse(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func sendUnauthorizedErrorResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write(unauthorizedRespBody)
}
