package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type rejectAll struct{}

func (rejectAll) VerifyIdentity(string) (*jwt.Claims, identity.Identity, error) {
	return nil, identity.Identity{}, errors.New("token is malformed")
}

func newTestRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRouter(r, zap.NewNop(), origins, &Handlers{
		AuthMiddleware: middleware.NewAuthMiddleware(rejectAll{}, nil, zap.NewNop()),
	})
	return r
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter([]string{"*"})

	for _, path := range []string{"/api/v1/health", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter([]string{"*"})

	routes := []struct{ method, path string }{
		{http.MethodGet, "/ws"},
		{http.MethodGet, "/api/v1/snapshot"},
		{http.MethodGet, "/api/v1/summary"},
		{http.MethodGet, "/api/v1/tickets"},
		{http.MethodPost, "/api/v1/tickets"},
		{http.MethodPut, "/api/v1/tickets/x/resolve"},
		{http.MethodPost, "/api/v1/equipment/import"},
		{http.MethodPut, "/api/v1/customers/x/technician"},
		{http.MethodGet, "/api/v1/technicians"},
		{http.MethodGet, "/api/v1/exports/tickets"},
		{http.MethodPost, "/api/v1/exports/tickets/archive"},
		{http.MethodPost, "/api/v1/session/logout"},
		{http.MethodGet, "/api/v1/admin/ws/stats"},
	}
	for _, rt := range routes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.method+" "+rt.path)
	}
}

func TestRouter_CORS(t *testing.T) {
	r := newTestRouter([]string{"https://desk.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tickets", nil)
	req.Header.Set("Origin", "https://desk.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://desk.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
