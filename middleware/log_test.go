package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var hasLogID bool
	r := mux.NewRouter()
	r.Use(Log)
	r.Path("/api/v1/notifications/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Info().Msg("inside")
		hasLogID = bytes.Contains(buf.Bytes(), []byte(`"log_id"`))
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/abc", nil)
	req = req.WithContext(logger.WithContext(req.Context()))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.True(t, hasLogID)
	assert.Contains(t, buf.String(), "status: 418")
	assert.Contains(t, buf.String(), "path: /api/v1/notifications/abc")
}
