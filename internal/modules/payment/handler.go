package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tablebooking/internal/gateway"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/pkg/response"
)

const maxWebhookBody = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service *Service
	log     *zerolog.Logger
}

func NewHandler(service *Service, log *zerolog.Logger) *Handler {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Handler{service: service, log: log}
}

// RegisterPublicRoutes mounts the gateway webhook and the deposit intent endpoint.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/gateway", h.Webhook)
	rg.POST("/payments/intents", h.CreateIntent)
}

// RegisterStaffRoutes exposes the audit trail of a booking.
func (h *Handler) RegisterStaffRoutes(rg *gin.RouterGroup) {
	rg.GET("/bookings/:id/payments", h.ListAudit)
}

// RegisterAdminRoutes exposes refunds and the audit export.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings/:id/refund", h.Refund)
	rg.GET("/payments/audit/export", h.ExportAudit)
}

// Webhook handles POST /webhooks/gateway. Anything handled or deliberately
// ignored is acknowledged with 200 so the gateway stops retrying.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unreadable request body")
		return
	}

	res, err := h.service.Reconcile(c.Request.Context(), payload, c.GetHeader(gateway.SignatureHeader))
	if err != nil {
		if errors.Is(err, apperr.ErrAuthenticity) {
			h.log.Warn().Err(err).Str("remote_addr", c.ClientIP()).Msg("rejected gateway notification")
		}
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	resp, err := h.service.CreateIntent(c.Request.Context(), req)
	if err != nil {
		response.PublicFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) Refund(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	resp, err := h.service.Refund(c.Request.Context(), id, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, resp)
}

func (h *Handler) ListAudit(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	entries, err := h.service.ListAudit(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// ExportAudit handles GET /payments/audit/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ExportAudit(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "from and to are required")
		return
	}
	buf, err := h.service.ExportAudit(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	filename := "payments_" + req.From + "_" + req.To + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func bookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid booking ID")
		return 0, false
	}
	return id, true
}
