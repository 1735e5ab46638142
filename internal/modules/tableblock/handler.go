package tableblock

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tablebooking/internal/middleware"
	"tablebooking/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts block management; rg must already require staff auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/blocks", h.ListBlocks)
	rg.POST("/blocks", h.CreateBlock)
	rg.PUT("/blocks/:id", h.UpdateBlock)
	rg.DELETE("/blocks/:id", h.DeleteBlock)
}

func (h *Handler) CreateBlock(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	block, err := h.service.CreateBlock(c.Request.Context(), req, middleware.StaffID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"block": block})
}

func (h *Handler) UpdateBlock(c *gin.Context) {
	id, ok := blockID(c)
	if !ok {
		return
	}
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	block, err := h.service.UpdateBlock(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"block": block})
}

func (h *Handler) DeleteBlock(c *gin.Context) {
	id, ok := blockID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteBlock(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

// ListBlocks handles GET /blocks?table_id=&include_expired=
func (h *Handler) ListBlocks(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	blocks, err := h.service.ListBlocks(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"blocks": blocks})
}

func blockID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid block ID")
		return 0, false
	}
	return id, true
}
