package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/manufactureflow/backend/internal/inventory"
	"github.com/manufactureflow/backend/internal/production"
	"github.com/manufactureflow/backend/internal/quality"
)

func (h *httpHandler) handleListOrders(c *gin.Context) {
	orders, err := h.production.ListOrders(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list production orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *httpHandler) handleGetOrder(c *gin.Context) {
	order, err := h.production.GetOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, production.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch production order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch_failed"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *httpHandler) handleCreateOrder(c *gin.Context) {
	var order production.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.production.CreateOrder(c.Request.Context(), order)
	if errors.Is(err, production.ErrInvalidOrder) || errors.Is(err, production.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to create production order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateOrder(c *gin.Context) {
	var updates production.Order
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.production.UpdateOrder(c.Request.Context(), c.Param("id"), updates)
	if errors.Is(err, production.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, production.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to update production order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteOrder(c *gin.Context) {
	err := h.production.DeleteOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, production.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete production order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type workOrderStatusPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleWorkOrderStatus(c *gin.Context) {
	var request workOrderStatusPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	workOrder, err := h.production.UpdateWorkOrderStatus(c.Request.Context(), c.Param("id"), request.Status)
	if errors.Is(err, production.ErrWorkOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, production.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to update work order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, workOrder)
}

func (h *httpHandler) handleListMaterials(c *gin.Context) {
	materials, err := h.inventory.ListMaterials(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list materials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, materials)
}

func (h *httpHandler) handleCreateMaterial(c *gin.Context) {
	var material inventory.Material
	if err := c.ShouldBindJSON(&material); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.inventory.CreateMaterial(c.Request.Context(), material)
	if errors.Is(err, inventory.ErrInvalidMaterial) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to create material", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateMaterial(c *gin.Context) {
	var updates inventory.Material
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.inventory.UpdateMaterial(c.Request.Context(), c.Param("id"), updates)
	if errors.Is(err, inventory.ErrMaterialNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update material", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteMaterial(c *gin.Context) {
	err := h.inventory.DeleteMaterial(c.Request.Context(), c.Param("id"))
	if errors.Is(err, inventory.ErrMaterialNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete material", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type movementRequestPayload struct {
	Type      string  `json:"type"`
	Quantity  float64 `json:"quantity"`
	Reason    string  `json:"reason"`
	Reference string  `json:"reference"`
}

type movementResponsePayload struct {
	Movement inventory.StockMovement `json:"movement"`
	Material inventory.Material      `json:"material"`
}

func (h *httpHandler) handleRecordMovement(c *gin.Context) {
	var request movementRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	claims, _ := sessionClaims(c)
	movement, material, err := h.inventory.RecordMovement(c.Request.Context(), inventory.MovementRequest{
		MaterialID: c.Param("id"),
		Type:       request.Type,
		Quantity:   request.Quantity,
		Reason:     request.Reason,
		Reference:  request.Reference,
		User:       claims.Username,
	})
	if errors.Is(err, inventory.ErrMaterialNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, inventory.ErrInvalidMovement) || errors.Is(err, inventory.ErrInsufficientStock) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to record movement", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "movement_failed"})
		return
	}
	c.JSON(http.StatusCreated, movementResponsePayload{Movement: movement, Material: material})
}

func (h *httpHandler) handleListMovements(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		limit = parsed
	}
	movements, err := h.inventory.ListMovements(c.Request.Context(), c.Query("materialId"), limit)
	if err != nil {
		h.logger.Error("failed to list movements", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *httpHandler) handleLowStock(c *gin.Context) {
	materials, err := h.inventory.LowStockMaterials(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list low stock materials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, materials)
}

func (h *httpHandler) handleListChecks(c *gin.Context) {
	checks, err := h.quality.ListChecks(c.Request.Context(), c.Query("workOrderId"))
	if err != nil {
		h.logger.Error("failed to list quality checks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, checks)
}

func (h *httpHandler) handleCreateCheck(c *gin.Context) {
	var check quality.Check
	if err := c.ShouldBindJSON(&check); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if check.Inspector == "" {
		claims, _ := sessionClaims(c)
		check.Inspector = claims.Username
	}
	created, err := h.quality.CreateCheck(c.Request.Context(), check)
	if errors.Is(err, quality.ErrInvalidCheck) || errors.Is(err, quality.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to create quality check", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

type checkStatusPayload struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *httpHandler) handleCheckStatus(c *gin.Context) {
	var request checkStatusPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	check, err := h.quality.UpdateStatus(c.Request.Context(), c.Param("id"), request.Status, request.Notes)
	if errors.Is(err, quality.ErrCheckNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, quality.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to update quality check", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, check)
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	if h.analytics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analytics_unavailable"})
		return
	}
	snapshot, err := h.analytics.ComputeSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute dashboard snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot_failed"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
