// internal/handlers/projection/projection.go
package projection

import (
	"net/http"

	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/response"
	"impriartex-service/internal/projection"

	"github.com/gin-gonic/gin"
)

// ProjectionHandler serves one-shot reads of the state a session would follow over
// the socket. Clients without a socket use it to poll.
type ProjectionHandler struct {
	loader projection.Loader
}

func NewProjectionHandler(loader projection.Loader) *ProjectionHandler {
	return &ProjectionHandler{loader: loader}
}

// GetSnapshot returns customers, equipment, technicians and the visible tickets
func (h *ProjectionHandler) GetSnapshot(c *gin.Context) {
	snap, err := projection.Load(c.Request.Context(), h.loader, middleware.MustGetIdentity(c))
	if err != nil {
		response.FromError(c, "failed to load snapshot", err)
		return
	}

	response.Success(c, http.StatusOK, "snapshot loaded", snap)
}

// GetSummary returns the dashboard counters
func (h *ProjectionHandler) GetSummary(c *gin.Context) {
	snap, err := projection.Load(c.Request.Context(), h.loader, middleware.MustGetIdentity(c))
	if err != nil {
		response.FromError(c, "failed to load summary", err)
		return
	}

	response.Success(c, http.StatusOK, "summary loaded", snap.Summary())
}
