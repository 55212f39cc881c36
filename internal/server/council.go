package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/council/config"
	"github.com/mohammad-safakhou/council/internal/council"
)

// CouncilHandler exposes the fan-out aggregation endpoint
type CouncilHandler struct {
	Orchestrator *council.Orchestrator
	Defaults     config.CouncilConfig
}

func (h *CouncilHandler) Register(g *echo.Group) {
	g.POST("", h.ask)
}

// ask runs one council round. Backend failures are data inside a 200 result;
// only a failure to run the round at all surfaces as an error status.
func (h *CouncilHandler) ask(c echo.Context) error {
	var req struct {
		Query          string `json:"query"`
		WantSummary    *bool  `json:"want_summary"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	if req.TimeoutSeconds < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "timeout_seconds must be positive")
	}

	wantSummary := h.Defaults.DefaultWantSummary
	if req.WantSummary != nil {
		wantSummary = *req.WantSummary
	}
	timeoutSeconds := req.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = int(h.Defaults.DefaultTimeout / time.Second)
		if timeoutSeconds <= 0 {
			timeoutSeconds = 60
		}
	}

	q := council.Query{
		Text:           req.Query,
		WantSummary:    wantSummary,
		TimeoutSeconds: timeoutSeconds,
	}
	result, err := h.Orchestrator.Process(c.Request().Context(), q)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
