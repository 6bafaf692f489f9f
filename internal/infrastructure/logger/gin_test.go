package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(l *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), GinMiddleware(l), Recovery(l))
	return router
}

func httpLogs(recorded *observer.ObservedLogs) []observer.LoggedEntry {
	return recorded.FilterMessage("HTTP Request").All()
}

func TestGinMiddleware(t *testing.T) {
	t.Run("logs successful requests at info", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		router := newTestRouter(zap.New(core))
		router.GET("/returns/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/returns/1?verbose=1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		logs := httpLogs(recorded)
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.InfoLevel, logs[0].Level)
		fields := logs[0].ContextMap()
		assert.Equal(t, "/returns/1", fields["path"])
		assert.Equal(t, "verbose=1", fields["query"])
		assert.Equal(t, w.Header().Get(RequestIDHeader), fields["request_id"])
	})

	t.Run("keeps the caller's request id and operator", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		router := newTestRouter(zap.New(core))
		var seenRequestID, seenOperator string
		router.POST("/returns/:id/confirm", func(c *gin.Context) {
			seenRequestID = GetRequestID(c.Request.Context())
			seenOperator = GetOperator(c.Request.Context())
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/returns/1/confirm", nil)
		req.Header.Set(RequestIDHeader, "req-from-caller")
		req.Header.Set(OperatorHeader, "alice")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-from-caller", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "req-from-caller", seenRequestID)
		assert.Equal(t, "alice", seenOperator)
		require.Len(t, httpLogs(recorded), 1)
		assert.Equal(t, "alice", httpLogs(recorded)[0].ContextMap()["operator"])
	})

	t.Run("uses warn for client errors and error for server errors", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		router := newTestRouter(zap.New(core))
		router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusConflict) })
		router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/broken", nil))

		logs := httpLogs(recorded)
		require.Len(t, logs, 2)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
		assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
	})
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, recorded.FilterMessage("Panic recovered").All(), 1)
}

func TestGetGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))

	l := zap.NewExample()
	c.Set(ginLoggerKey, l)
	assert.Same(t, l, GetGinLogger(c))
}
