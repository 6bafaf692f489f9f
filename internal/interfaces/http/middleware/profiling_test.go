package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfiling_LabelsRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var route, method string
	var routeOK bool
	r := gin.New()
	r.Use(Profiling(DefaultProfilingConfig()))
	r.GET("/api/v1/returns/:id", func(c *gin.Context) {
		route, routeOK = pprof.Label(c.Request.Context(), "route")
		method, _ = pprof.Label(c.Request.Context(), "method")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/returns/42", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, routeOK)
	assert.Equal(t, "/api/v1/returns/:id", route)
	assert.Equal(t, http.MethodGet, method)
}

func TestProfiling_SkipsHealthChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var labelled bool
	r := gin.New()
	r.Use(Profiling(DefaultProfilingConfig()))
	r.GET("/health", func(c *gin.Context) {
		_, labelled = pprof.Label(c.Request.Context(), "route")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, labelled)
}

func TestProfiling_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var labelled bool
	r := gin.New()
	r.Use(Profiling(ProfilingConfig{Enabled: false}))
	r.GET("/api/v1/returns/:id", func(c *gin.Context) {
		_, labelled = pprof.Label(c.Request.Context(), "route")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/returns/1", nil))
	assert.False(t, labelled)
}
