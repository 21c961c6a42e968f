// internal/handlers/ticket/ticket.go
package ticket

import (
	"net/http"

	"impriartex-service/internal/domain/ticket"
	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/response"
	service "impriartex-service/internal/service/ticket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TicketHandler struct {
	ticketService *service.TicketService
}

func NewTicketHandler(ticketService *service.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// CreateTicket opens a ticket for a piece of equipment
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	var req ticket.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.ticketService.CreateTicket(c.Request.Context(), middleware.MustGetIdentity(c), &req)
	if err != nil {
		response.FromError(c, "failed to create ticket", err)
		return
	}

	response.Success(c, http.StatusCreated, "ticket created successfully", result)
}

// ListTickets returns the tickets visible to the caller, newest first
func (h *TicketHandler) ListTickets(c *gin.Context) {
	result, err := h.ticketService.ListTickets(c.Request.Context(), middleware.MustGetIdentity(c))
	if err != nil {
		response.FromError(c, "failed to list tickets", err)
		return
	}

	response.Success(c, http.StatusOK, "tickets retrieved", result)
}

func (h *TicketHandler) GetTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	result, err := h.ticketService.GetTicket(c.Request.Context(), middleware.MustGetIdentity(c), id)
	if err != nil {
		response.FromError(c, "ticket not found", err)
		return
	}

	response.Success(c, http.StatusOK, "ticket retrieved", result)
}

// AcknowledgeTicket moves an open ticket into attention
func (h *TicketHandler) AcknowledgeTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	result, err := h.ticketService.AcknowledgeTicket(c.Request.Context(), middleware.MustGetIdentity(c), id)
	if err != nil {
		response.FromError(c, "failed to acknowledge ticket", err)
		return
	}

	response.Success(c, http.StatusOK, "ticket acknowledged", result)
}

// ResolveTicket completes a ticket with resolution notes
func (h *TicketHandler) ResolveTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	var req ticket.ResolveTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "resolution notes are required", err)
		return
	}

	result, err := h.ticketService.ResolveTicket(c.Request.Context(), middleware.MustGetIdentity(c), id, req.ResolutionNotes)
	if err != nil {
		response.FromError(c, "failed to resolve ticket", err)
		return
	}

	response.Success(c, http.StatusOK, "ticket resolved", result)
}

func ticketID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid ticket ID", err)
		return uuid.Nil, false
	}
	return id, true
}
