// internal/middleware/helpers.go
package middleware

import (
	"impriartex-service/internal/domain/identity"

	"github.com/gin-gonic/gin"
)

// MustGetIdentity gets the identity from context or panics
func MustGetIdentity(c *gin.Context) identity.Identity {
	id, exists := GetIdentity(c)
	if !exists {
		panic("identity not found in context")
	}
	return id
}

// MustGetJTI gets JTI from context or panics
func MustGetJTI(c *gin.Context) string {
	jti, exists := GetJTI(c)
	if !exists {
		panic("jti not found in context")
	}
	return jti
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxIdentity)
	return exists
}

// IsSupervisor checks if user is a supervisor
func IsSupervisor(c *gin.Context) bool {
	id, ok := GetIdentity(c)
	return ok && id.IsSupervisor()
}
