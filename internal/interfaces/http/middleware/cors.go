package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to make cross-origin requests.
	// ["*"] allows every origin, which must not be combined with credentials.
	AllowedOrigins []string

	// AllowedMethods lists HTTP methods permitted for cross-origin requests.
	AllowedMethods []string

	// AllowedHeaders lists request headers permitted for cross-origin requests.
	AllowedHeaders []string

	// ExposedHeaders lists response headers exposed to browser clients.
	ExposedHeaders []string

	// AllowCredentials permits cookies and authorization headers.
	AllowCredentials bool

	// MaxAge is how long, in seconds, preflight results may be cached.
	MaxAge int

	// AllowWildcard enables subdomain patterns such as *.example.com.
	AllowWildcard bool
}

// DefaultCORSConfig returns a closed-by-default CORS configuration; deployments
// list their origins explicitly.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: false,
		MaxAge:           86400,
		AllowWildcard:    false,
	}
}

// CORS returns middleware that answers preflight requests and stamps the
// Access-Control-* headers on allowed cross-origin responses. Disallowed
// origins pass through without CORS headers; the browser enforces the block.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	allowedHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	originSet := make(map[string]bool, len(cfg.AllowedOrigins))
	var wildcardSuffixes []string
	allowAll := false

	for _, origin := range cfg.AllowedOrigins {
		switch {
		case origin == "*":
			allowAll = true
		case cfg.AllowWildcard && strings.HasPrefix(origin, "*."):
			wildcardSuffixes = append(wildcardSuffixes, origin[1:])
		default:
			originSet[strings.ToLower(origin)] = true
		}
	}

	originAllowed := func(origin string) bool {
		if allowAll {
			return true
		}
		lower := strings.ToLower(origin)
		if originSet[lower] {
			return true
		}
		for _, suffix := range wildcardSuffixes {
			if strings.HasSuffix(lower, suffix) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		// Same-origin or non-browser request.
		if origin == "" {
			c.Next()
			return
		}

		if !originAllowed(origin) {
			c.Next()
			return
		}

		header := c.Writer.Header()
		header.Add("Vary", "Origin")
		header.Add("Vary", "Access-Control-Request-Method")
		header.Add("Vary", "Access-Control-Request-Headers")

		if allowAll && !cfg.AllowCredentials {
			header.Set("Access-Control-Allow-Origin", "*")
		} else {
			header.Set("Access-Control-Allow-Origin", origin)
		}
		if cfg.AllowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Methods", allowedMethods)
			header.Set("Access-Control-Allow-Headers", allowedHeaders)
			if cfg.MaxAge > 0 {
				header.Set("Access-Control-Max-Age", maxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if exposedHeaders != "" {
			header.Set("Access-Control-Expose-Headers", exposedHeaders)
		}

		c.Next()
	}
}
