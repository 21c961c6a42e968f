// internal/handlers/session/session.go
package session

import (
	"context"
	"net/http"

	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/response"
	"impriartex-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Revoker interface {
	Revoke(ctx context.Context, rev *session.Revocation) error
}

// SocketCloser ends the live sockets opened with a token.
type SocketCloser interface {
	RevokeSession(identityID uuid.UUID, sessionID, reason string) int
}

type SessionHandler struct {
	revoker Revoker
	sockets SocketCloser
	logger  *zap.Logger
}

func NewSessionHandler(revoker Revoker, sockets SocketCloser, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		revoker: revoker,
		sockets: sockets,
		logger:  logger,
	}
}

// Me returns the identity carried by the token
func (h *SessionHandler) Me(c *gin.Context) {
	response.Success(c, http.StatusOK, "session retrieved", middleware.MustGetIdentity(c))
}

// Logout revokes the current token and closes the sockets opened with it
func (h *SessionHandler) Logout(c *gin.Context) {
	actor := middleware.MustGetIdentity(c)
	jti := middleware.MustGetJTI(c)

	rev := &session.Revocation{
		JTI:        jti,
		IdentityID: actor.ID.String(),
		Reason:     "logout",
	}
	if claims, ok := middleware.GetClaims(c); ok && claims.ExpiresAt != nil {
		rev.ExpiresAt = claims.ExpiresAt.Time
	}

	if err := h.revoker.Revoke(c.Request.Context(), rev); err != nil {
		h.logger.Error("logout failed",
			zap.String("identity_id", actor.ID.String()),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", nil)
		return
	}

	closed := 0
	if h.sockets != nil {
		closed = h.sockets.RevokeSession(actor.ID, jti, rev.Reason)
	}

	response.Success(c, http.StatusOK, "logout successful", gin.H{"closed_sockets": closed})
}
