package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
)

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	ping   PingFunc
	logger *logging.Service
}

func NewHealthHandler(ping PingFunc, logger *logging.Service) *HealthHandler {
	return &HealthHandler{ping: ping, logger: logger}
}

func (h *HealthHandler) Check(c echo.Context) error {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := h.ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
