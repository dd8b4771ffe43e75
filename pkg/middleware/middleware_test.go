package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (ratelimit.Result, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ratelimit.Result), args.Error(1)
}

func TestCorrelationID_GeneratesAndPropagates(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	var fromCtx, fromGin string
	router.GET("/", func(c *gin.Context) {
		fromCtx = logger.CorrelationID(c.Request.Context())
		fromGin = GetCorrelationID(c)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get(CorrelationIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, fromCtx)
	assert.Equal(t, id, fromGin)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "given-id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Header().Get(CorrelationIDHeader))
}

func TestCorrelationID_ReplacesUnsafeIDs(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/", func(c *gin.Context) {})

	for _, given := range []string{"bad id\nINFO forged", strings.Repeat("a", 129), "<script>"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, given)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		got := w.Header().Get(CorrelationIDHeader)
		assert.NotEqual(t, given, got)
		assert.Len(t, got, 36)
	}

	assert.True(t, validCorrelationID("req-01HF.abc:2"))
}

func TestRateLimit_RejectsWithReason(t *testing.T) {
	limiter := new(mockLimiter)
	limiter.On("Allow", mock.Anything, "192.0.2.1").Return(ratelimit.Result{
		Allowed:    false,
		Window:     "minute",
		Reason:     ratelimit.ReasonMinute,
		RetryAfter: 1500 * time.Millisecond,
		Remaining:  0,
	}, nil)

	called := false
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.POST("/scan", func(c *gin.Context) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.False(t, called, "handler must not run when rate limited")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ratelimit.ReasonMinute, body["error"].(map[string]interface{})["message"])
	limiter.AssertExpectations(t)
}

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	limiter := new(mockLimiter)
	limiter.On("Allow", mock.Anything, mock.Anything).Return(ratelimit.Result{}, errors.New("redis down"))

	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMaxBodySize(t *testing.T) {
	router := gin.New()
	router.Use(MaxBodySize(16))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaxBodySize_UndeclaredLength(t *testing.T) {
	type req struct {
		Value string `json:"value" validate:"required"`
	}
	router := gin.New()
	router.Use(MaxBodySize(32))
	router.POST("/", func(c *gin.Context) {
		var r req
		if !ValidateAndBind(c, &r) {
			return
		}
		c.Status(http.StatusOK)
	})

	body := `{"value":"` + strings.Repeat("a", 100) + `"}`
	httpReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	httpReq.ContentLength = -1
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "32", w.Header().Get("X-Max-Body-Bytes"))
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID(), Recovery())
	router.GET("/", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "trace-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "trace-42")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestMetricsAndLogger_PassThrough(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger("/healthz"), Metrics())
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, tc := range []struct {
		path string
		code int
	}{{"/healthz", http.StatusOK}, {"/fail", http.StatusBadGateway}, {"/nowhere", http.StatusNotFound}} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.code, w.Code, tc.path)
	}
}

func TestValidateAndBind(t *testing.T) {
	type req struct {
		Type string `json:"type" validate:"required,scan_type"`
	}

	router := gin.New()
	router.POST("/", func(c *gin.Context) {
		var r req
		if !ValidateAndBind(c, &r) {
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"fax"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "fields")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"message"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestTimeout(t *testing.T) {
	router := gin.New()
	router.Use(RequestTimeout(20 * time.Millisecond))
	router.GET("/fast", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/slow", func(c *gin.Context) {
		time.Sleep(200 * time.Millisecond)
		c.String(http.StatusOK, "late")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "request timed out")
}

func TestRequestTimeout_DisabledPassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(RequestTimeout(0))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
