package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid or expired code"`
}

func New(cfg *config.Config, logger *logging.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	configureTrustedProxies(e, cfg.Server.TrustedProxies, logger)

	s := &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(logging.RequestID())
	e.Use(logging.RequestLogger(logger, "/healthz"))
	if cfg.Server.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(cfg.Server.RequestTimeout))
	}

	return s
}

func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info("starting server", zap.String("address", addr))
	s.logRoutes()

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
}

func (s *Server) Get(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.GET(path, handler, m...)
}

func (s *Server) Post(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.POST(path, handler, m...)
}

func (s *Server) Put(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.PUT(path, handler, m...)
}

func (s *Server) Delete(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.DELETE(path, handler, m...)
}

func (s *Server) Group(prefix string, m ...echo.MiddlewareFunc) *echo.Group {
	return s.echo.Group(prefix, m...)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// handleError renders every error as {"error": message}. Messages of 5xx
// errors never leave the process.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := http.StatusText(status)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if status < http.StatusInternalServerError {
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Ctx(c.Request().Context()).Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		message = http.StatusText(status)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{Error: message})
	}
	if err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

func (s *Server) logRoutes() {
	for _, r := range s.echo.Routes() {
		s.logger.Debug("route registered",
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.String("handler", shortenHandlerName(r.Name)))
	}
}

func configureTrustedProxies(e *echo.Echo, proxies []string, logger *logging.Service) {
	trust := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	trusted := 0
	for _, proxy := range proxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if !strings.Contains(proxy, "/") {
			if ip := net.ParseIP(proxy); ip != nil {
				if ip.To4() != nil {
					proxy += "/32"
				} else {
					proxy += "/128"
				}
			}
		}

		_, network, err := net.ParseCIDR(proxy)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy))
			continue
		}
		trust = append(trust, echo.TrustIPRange(network))
		trusted++
	}

	if trusted == 0 {
		e.IPExtractor = echo.ExtractIPDirect()
		return
	}
	e.IPExtractor = echo.ExtractIPFromXFFHeader(trust...)
}

func shortenHandlerName(name string) string {
	if idx := strings.Index(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if len(name) > 80 {
		name = name[:77] + "..."
	}
	return name
}
