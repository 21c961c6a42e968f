// internal/handlers/export/export.go
package export

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/domain/ticket"
	"impriartex-service/internal/export"
	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TicketLister interface {
	ListTickets(ctx context.Context, actor identity.Identity) ([]ticket.View, error)
}

type Archiver interface {
	Store(ctx context.Context, report []byte) (*export.Archived, error)
}

type ExportHandler struct {
	tickets TicketLister
	archive Archiver
	opts    export.Options
	logger  *zap.Logger
}

// NewExportHandler builds the report endpoints. archive may be nil when no bucket is
// configured; the archive endpoint then answers 503.
func NewExportHandler(tickets TicketLister, archive Archiver, opts export.Options, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		tickets: tickets,
		archive: archive,
		opts:    opts,
		logger:  logger,
	}
}

// DownloadTickets streams the audit report as a CSV attachment.
// Query: start, end (YYYY-MM-DD, both required for filtering)
func (h *ExportHandler) DownloadTickets(c *gin.Context) {
	report, ok := h.render(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("tickets_%s.csv", time.Now().In(h.location()).Format(time.DateOnly))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", report)
}

// ArchiveTickets stores the report in the archive bucket and returns a download link.
func (h *ExportHandler) ArchiveTickets(c *gin.Context) {
	if h.archive == nil {
		response.Error(c, http.StatusServiceUnavailable, "report archive is not configured", nil)
		return
	}

	report, ok := h.render(c)
	if !ok {
		return
	}

	archived, err := h.archive.Store(c.Request.Context(), report)
	if err != nil {
		h.logger.Error("failed to archive report", zap.Error(err))
		response.Error(c, http.StatusBadGateway, "failed to archive report", nil)
		return
	}

	response.Success(c, http.StatusCreated, "report archived", archived)
}

func (h *ExportHandler) render(c *gin.Context) ([]byte, bool) {
	start, err := export.ParseDate(c.Query("start"), h.location())
	if err != nil {
		response.ValidationError(c, "invalid start date", err)
		return nil, false
	}
	end, err := export.ParseDate(c.Query("end"), h.location())
	if err != nil {
		response.ValidationError(c, "invalid end date", err)
		return nil, false
	}

	tickets, err := h.tickets.ListTickets(c.Request.Context(), middleware.MustGetIdentity(c))
	if err != nil {
		response.FromError(c, "failed to load tickets", err)
		return nil, false
	}

	report, err := export.Generate(tickets, start, end, h.opts)
	if err != nil {
		h.logger.Error("failed to render report", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "failed to render report", nil)
		return nil, false
	}
	return report, true
}

func (h *ExportHandler) location() *time.Location {
	if h.opts.Location != nil {
		return h.opts.Location
	}
	return time.UTC
}
