// internal/handlers/customer/customer.go
package customer

import (
	"net/http"

	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/response"
	service "impriartex-service/internal/service/customer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CustomerHandler struct {
	customerService *service.CustomerService
}

func NewCustomerHandler(customerService *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
	}
}

// ListCustomers returns every customer institution
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	result, err := h.customerService.ListCustomers(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list customers", err)
		return
	}

	response.Success(c, http.StatusOK, "customers retrieved", result)
}

// AssignTechnician changes where future tickets of a customer are routed (supervisor only)
func (h *CustomerHandler) AssignTechnician(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid customer ID", err)
		return
	}

	var req customer.AssignTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.customerService.AssignTechnician(c.Request.Context(), middleware.MustGetIdentity(c), customerID, req.TechnicianID)
	if err != nil {
		response.FromError(c, "failed to assign technician", err)
		return
	}

	response.Success(c, http.StatusOK, "technician assigned", result)
}

// ListTechnicians returns the profiles with the technician role
func (h *CustomerHandler) ListTechnicians(c *gin.Context) {
	result, err := h.customerService.ListTechnicians(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list technicians", err)
		return
	}

	response.Success(c, http.StatusOK, "technicians retrieved", result)
}
