package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"order-intake/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func statusFor(err error) int {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)
	return w.Code
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.ErrIdempotencyConflict, http.StatusUnprocessableEntity},
		{apperr.ErrEmptyCart, http.StatusBadRequest},
		{&apperr.InsufficientInventoryError{ProductID: 1, Requested: 5, Available: 2}, http.StatusConflict},
		{apperr.New(apperr.NotFound, "order not found"), http.StatusNotFound},
		{apperr.New(apperr.Validation, "bad input"), http.StatusBadRequest},
		{apperr.New(apperr.InvalidState, "cannot cancel"), http.StatusConflict},
		{fmt.Errorf("something unexpected"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, statusFor(tc.err), "error: %v", tc.err)
	}
}

func TestCorrelationMiddlewarePropagatesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(correlationMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "corr-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "corr-abc", w.Header().Get("X-Correlation-ID"))

	// Without the header a correlation id gets minted.
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}
