package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORSConfig holds CORS configuration. An empty AllowOrigins allows any origin.
type CORSConfig struct {
	AllowOrigins  []string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int // seconds a preflight may be cached
}

func (cfg CORSConfig) allowOrigin(origin string) (string, bool) {
	if len(cfg.AllowOrigins) == 0 {
		return "*", true
	}
	for _, o := range cfg.AllowOrigins {
		switch {
		case o == "*" && origin == "":
			return "*", true
		case o == "*", o == origin:
			return origin, true
		}
	}
	return "", false
}

// CORS returns CORS middleware. Requests from other origins pass through
// without CORS headers so the browser blocks them.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			h := c.Response().Header()
			h.Add(echo.HeaderVary, echo.HeaderOrigin)

			allowed, ok := cfg.allowOrigin(req.Header.Get(echo.HeaderOrigin))
			if !ok {
				return next(c)
			}
			h.Set(echo.HeaderAccessControlAllowOrigin, allowed)

			preflight := req.Method == http.MethodOptions &&
				req.Header.Get(echo.HeaderAccessControlRequestMethod) != ""
			if !preflight {
				if expose != "" {
					h.Set(echo.HeaderAccessControlExposeHeaders, expose)
				}
				return next(c)
			}

			if methods != "" {
				h.Set(echo.HeaderAccessControlAllowMethods, methods)
			}
			if headers != "" {
				h.Set(echo.HeaderAccessControlAllowHeaders, headers)
			}
			if cfg.MaxAge > 0 {
				h.Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(cfg.MaxAge))
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
}
