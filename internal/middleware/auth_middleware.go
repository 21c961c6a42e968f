// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/pkg/jwt"
	"impriartex-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxIdentity = "identity"
	ctxClaims   = "claims"
	ctxJTI      = "jti"
)

type TokenVerifier interface {
	VerifyIdentity(token string) (*jwt.Claims, identity.Identity, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthMiddleware struct {
	verifier    TokenVerifier
	revocations RevocationChecker
	logger      *zap.Logger
}

func NewAuthMiddleware(verifier TokenVerifier, revocations RevocationChecker, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:    verifier,
		revocations: revocations,
		logger:      logger,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, id, err := m.verifier.VerifyIdentity(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		if m.revocations != nil {
			revoked, err := m.revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				m.logger.Error("revocation lookup failed", zap.String("jti", claims.ID), zap.Error(err))
				response.Error(c, http.StatusServiceUnavailable, "session check unavailable", nil)
				return
			}
			if revoked {
				response.Error(c, http.StatusUnauthorized, "session has been revoked", nil)
				return
			}
		}

		// Set user context
		c.Set(ctxIdentity, id)
		c.Set(ctxClaims, claims)
		c.Set(ctxJTI, claims.ID)

		c.Next()
	}
}

// RequireRole middleware that requires user to have at least one of the specified roles
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "no identity found - authentication required", nil)
			return
		}

		if !id.HasRole(roles...) {
			err := errors.New("user does not have required role")
			response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
				"required_roles": roles,
				"user_role":      id.Role,
			})
			return
		}

		c.Next()
	}
}

// SupervisorOnly returns middlewares for supervisor-only routes (Auth + RequireRole)
func (m *AuthMiddleware) SupervisorOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(identity.RoleSupervisor),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	// Try header first
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Browsers cannot set headers on WebSocket upgrades
	token := c.Query("token")
	if token != "" {
		return token
	}

	return ""
}

// GetIdentity returns the authenticated principal
func GetIdentity(c *gin.Context) (identity.Identity, bool) {
	v, exists := c.Get(ctxIdentity)
	if !exists {
		return identity.Identity{}, false
	}

	id, ok := v.(identity.Identity)
	return id, ok
}

// GetClaims returns the verified token claims
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		return nil, false
	}

	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// Helper function to get JTI from context
func GetJTI(c *gin.Context) (string, bool) {
	jti, exists := c.Get(ctxJTI)
	if !exists {
		return "", false
	}

	jtiStr, ok := jti.(string)
	return jtiStr, ok
}
