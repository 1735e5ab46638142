package availability

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tablebooking/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/availability", h.CheckAvailability)
}

// CheckAvailability handles GET /availability?table_id=&date=&time=&party_size=
func (h *Handler) CheckAvailability(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}

	resp, err := h.service.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		response.PublicFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
