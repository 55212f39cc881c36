package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/council/internal/telemetry"
)

// OpsHandler exposes operational endpoints (performance summaries).
type OpsHandler struct {
	Telemetry *telemetry.Telemetry
}

func (h *OpsHandler) Register(g *echo.Group) {
	g.GET("/performance", h.performance)
}

// performance returns telemetry counters and per-model summaries.
func (h *OpsHandler) performance(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Telemetry.Snapshot())
}
