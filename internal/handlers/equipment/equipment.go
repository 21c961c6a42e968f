// internal/handlers/equipment/equipment.go
package equipment

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/response"
	service "impriartex-service/internal/service/inventory"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxImportSize caps an uploaded inventory sheet.
const maxImportSize = 8 << 20

type EquipmentHandler struct {
	inventoryService *service.InventoryService
}

func NewEquipmentHandler(inventoryService *service.InventoryService) *EquipmentHandler {
	return &EquipmentHandler{
		inventoryService: inventoryService,
	}
}

// ListEquipment returns the fleet with owner names
func (h *EquipmentHandler) ListEquipment(c *gin.Context) {
	result, err := h.inventoryService.ListEquipment(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list equipment", err)
		return
	}

	response.Success(c, http.StatusOK, "equipment retrieved", result)
}

// CreateEquipment registers a single piece of equipment (supervisor only)
func (h *EquipmentHandler) CreateEquipment(c *gin.Context) {
	var req equipment.CreateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.inventoryService.CreateEquipment(c.Request.Context(), middleware.MustGetIdentity(c), &req)
	if err != nil {
		response.FromError(c, "failed to create equipment", err)
		return
	}

	response.Success(c, http.StatusCreated, "equipment created successfully", result)
}

// ImportEquipment loads a comma-separated inventory sheet, sent either as the raw body
// or as the multipart field "file". The batch is applied all-or-nothing.
func (h *EquipmentHandler) ImportEquipment(c *gin.Context) {
	text, err := readImport(c)
	if err != nil {
		response.ValidationError(c, "invalid import payload", err)
		return
	}

	result, err := h.inventoryService.Import(c.Request.Context(), middleware.MustGetIdentity(c), text)
	if err != nil {
		response.FromError(c, "import rejected, no rows were saved", err)
		return
	}

	response.Success(c, http.StatusOK, fmt.Sprintf("%d equipment imported", result.Imported), result)
}

// LinkCustomer sets or clears the owner of a piece of equipment (supervisor only)
func (h *EquipmentHandler) LinkCustomer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid equipment ID", err)
		return
	}

	var req equipment.LinkCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.inventoryService.LinkEquipment(c.Request.Context(), middleware.MustGetIdentity(c), id, req.CustomerID)
	if err != nil {
		response.FromError(c, "failed to link equipment", err)
		return
	}

	response.Success(c, http.StatusOK, "equipment updated", result)
}

func readImport(c *gin.Context) (string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("missing file field: %w", err)
		}
		if fh.Size > maxImportSize {
			return "", errors.New("file too large")
		}
		f, err := fh.Open()
		if err != nil {
			return "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		return string(b), err
	}

	b, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
