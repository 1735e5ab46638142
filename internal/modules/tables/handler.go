package tables

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tablebooking/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes exposes the active floor plan.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/tables", h.ListTables)
	rg.GET("/tables/:id", h.GetTable)
}

// RegisterAdminRoutes exposes table management; rg must already require the admin role.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/tables", h.CreateTable)
	rg.PUT("/tables/:id", h.UpdateTable)
	rg.PATCH("/tables/:id/active", h.SetActive)
	rg.GET("/tables/symmetry", h.VerifySymmetry)
}

// ListTables handles GET /tables?all=true
func (h *Handler) ListTables(c *gin.Context) {
	activeOnly := c.Query("all") != "true"
	list, err := h.service.ListTables(c.Request.Context(), activeOnly)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tables": list})
}

func (h *Handler) GetTable(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}
	t, err := h.service.GetTable(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"table": t})
}

func (h *Handler) CreateTable(c *gin.Context) {
	var req CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	t, err := h.service.CreateTable(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"table": t})
}

func (h *Handler) UpdateTable(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}
	var req UpdateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	t, err := h.service.UpdateTable(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"table": t})
}

func (h *Handler) SetActive(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	t, err := h.service.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"table": t})
}

func (h *Handler) VerifySymmetry(c *gin.Context) {
	report, err := h.service.VerifySymmetry(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

func tableID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid table ID")
		return 0, false
	}
	return id, true
}
