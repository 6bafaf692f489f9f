package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func serveHealth(t *testing.T, h *SystemHandler) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Health(c)

	var resp struct {
		Success bool           `json:"success"`
		Data    HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	return w.Code, resp.Data
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		code, resp := serveHealth(t, NewSystemHandler("returns-service", "1.2.0", nil))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "returns-service", resp.Name)
		assert.Equal(t, "1.2.0", resp.Version)
		assert.NotEmpty(t, resp.GoVersion)
		assert.Empty(t, resp.Database)
	})

	t.Run("database up", func(t *testing.T) {
		db := new(MockPinger)
		db.On("Ping", mock.Anything).Return(nil)

		code, resp := serveHealth(t, NewSystemHandler("returns-service", "1.2.0", db))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "up", resp.Database)
		db.AssertExpectations(t)
	})

	t.Run("database down", func(t *testing.T) {
		db := new(MockPinger)
		db.On("Ping", mock.Anything).Return(errors.New("connection refused"))

		code, resp := serveHealth(t, NewSystemHandler("returns-service", "1.2.0", db))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "down", resp.Database)
	})
}
