package livefeed

import (
	"github.com/gin-gonic/gin"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/pkg/response"
)

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws/availability", h.Subscribe)
}

// Subscribe upgrades to a websocket. GET /ws/availability?date=YYYY-MM-DD
// subscribes to that date immediately; more dates can be added by sending
// {"type":"subscribe","date":"YYYY-MM-DD"}.
func (h *Handler) Subscribe(c *gin.Context) {
	var dates []string
	if raw := c.Query("date"); raw != "" {
		d, err := domain.ParseDate(raw)
		if err != nil {
			response.FromError(c, apperr.Invalid("date", "date", "date must be YYYY-MM-DD"))
			return
		}
		dates = append(dates, d.String())
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.hub.Serve(conn, dates)
}
