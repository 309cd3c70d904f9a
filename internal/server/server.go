package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"JetsonChat/internal/relay"
)

const (
	EndPointHealth = "/health"
	EndPointChat   = "/api/chat"

	HeaderRequestID = "X-Request-Id"
)

// Options configures the router.
type Options struct {
	ServiceName    string
	Model          string
	AllowedOrigins string
	Logger         *slog.Logger
}

// NewRouter builds the HTTP surface around the relay handler.
func NewRouter(chat *relay.Handler, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(RequestID(), AccessLog(logger), Recovery(logger))
	if opts.AllowedOrigins != "" {
		router.Use(CORS(opts.AllowedOrigins))
	}

	router.GET(EndPointHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": opts.ServiceName,
			"model":   opts.Model,
		})
	})
	router.POST(EndPointChat, chat.Chat)

	return router
}

// RequestID reuses the caller's X-Request-Id or generates one, and exposes it
// on the gin context and the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(relay.RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog logs one line per request once the handler returns.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			logger.Info("http request",
				relay.RequestIDKey, c.GetString(relay.RequestIDKey),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		}()
		c.Next()
	}
}

// Recovery turns handler panics into 500s, except http.ErrAbortHandler which
// is re-raised so net/http drops the connection mid-stream.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			logger.Error("panic in handler", "panic", rec, relay.RequestIDKey, c.GetString(relay.RequestIDKey))
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}

// CORS sets permissive cross-origin headers for the configured origins.
func CORS(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Cache-Control, X-Request-Id")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", HeaderRequestID)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
