package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllowExhaustsBucket(t *testing.T) {
	l := NewTokenBucket(3, 3)

	assert.True(t, l.Allow("ip-1"))
	assert.True(t, l.Allow("ip-1"))
	assert.True(t, l.Allow("ip-1"))
	assert.False(t, l.Allow("ip-1"))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := NewTokenBucket(1, 1)

	assert.True(t, l.Allow("ip-1"))
	assert.False(t, l.Allow("ip-1"))
	assert.True(t, l.Allow("ip-2"))
}

func TestMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewTokenBucket(1, 1).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
