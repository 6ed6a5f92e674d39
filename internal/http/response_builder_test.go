package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/1").
		JSON(map[string]string{"id": "1"}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "/transactions/1", w.Header().Get("Location"))
	assert.Equal(t, `{"id":"1"}`, strings.TrimSpace(w.Body.String()))
}

func TestResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).Write(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]any{"bad": make(chan int)}).Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *ResponseBuilder
		code    int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unauthorized", UnauthorizedError("who"), http.StatusUnauthorized},
		{"not found", NotFoundError("none"), http.StatusNotFound},
		{"conflict", ConflictError("dup"), http.StatusConflict},
		{"unprocessable", UnprocessableEntityError("invalid"), http.StatusUnprocessableEntity},
		{"internal", InternalServerError("oops"), http.StatusInternalServerError},
		{"unavailable", ServiceUnavailableError("later"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			assert.Equal(t, tt.code, w.Code)
			assert.True(t, strings.HasPrefix(w.Body.String(), `{"error":"`), w.Body.String())
		})
	}

	w := httptest.NewRecorder()
	UnauthorizedError("who").Write(w)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}
