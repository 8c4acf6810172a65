package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// FromConfig builds a middleware config from the RATE_LIMIT_* settings.
func FromConfig(cfg config.RateLimitConfig, store Store, logger *logging.Service) *Config {
	return &Config{
		Store:     store,
		Rate:      cfg.Rate,
		Period:    cfg.Period,
		CountMode: cfg.CountMode,
		Logger:    logger,
	}
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = RouteKeyGenerator
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}
	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyGenerator(c)
			resetTime := time.Now().Add(cfg.Period)

			count, existingResetTime, exists := cfg.Store.Get(key)
			if exists {
				resetTime = existingResetTime
			}

			if cfg.CountMode == config.CountAll {
				// the increment is the admission decision
				newCount := cfg.Store.Increment(key, resetTime)
				if newCount > cfg.Rate {
					return limitReached(c, cfg, resetTime)
				}
				setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), resetTime)
				return next(c)
			}

			if count >= cfg.Rate {
				return limitReached(c, cfg, resetTime)
			}

			// reserve a slot while the request runs
			newCount := count + 1
			cfg.Store.Set(key, newCount, resetTime)

			setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), resetTime)

			err := next(c)

			status := responseStatus(c, err)
			shouldCount := false
			switch cfg.CountMode {
			case config.CountFailures:
				shouldCount = status >= 400
			case config.CountSuccess:
				shouldCount = status < 400
			}

			switch {
			case shouldCount:
				// slot already reserved
			case count > 0:
				cfg.Store.Set(key, count, resetTime)
			default:
				cfg.Store.Reset(key)
			}

			return err
		}
	}
}

func limitReached(c echo.Context, cfg *Config, resetTime time.Time) error {
	setHeaders(c, cfg.Rate, 0, resetTime)
	cfg.Logger.Warn("rate limit reached",
		append(logging.ClientFields(c), zap.String("path", c.Path()))...)
	return cfg.OnLimitReached(c)
}

// responseStatus is the status the client will see, including errors that
// echo's error handler has not rendered yet.
func responseStatus(c echo.Context, err error) int {
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return he.Code
		}
		return http.StatusInternalServerError
	}
	return c.Response().Status
}

func setHeaders(c echo.Context, limit, remaining int, reset time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

func clientIP(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" || ip == "unknown" {
		return "fallback"
	}
	return ip
}

func DefaultKeyGenerator(c echo.Context) string {
	return "rate_limit:" + clientIP(c)
}

// RouteKeyGenerator keys on route and client so each limited route has its
// own budget.
func RouteKeyGenerator(c echo.Context) string {
	return "rate_limit:" + c.Path() + ":" + clientIP(c)
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}
