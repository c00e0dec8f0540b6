package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	require.False(t, IsEnabled())
	require.Nil(t, GetRegistry())

	t.Run("disabled handler returns 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	InitRegistry()
	require.True(t, IsEnabled())
	reg := GetRegistry()
	require.NotNil(t, reg)

	t.Run("init is idempotent", func(t *testing.T) {
		InitRegistry()
		assert.Same(t, reg, GetRegistry())
	})

	t.Run("handler serves runtime collectors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})
}
