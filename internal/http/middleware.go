package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"camarero/internal/domain"
)

const (
	HeaderTenant    = "X-Tenant-ID"
	HeaderRole      = "X-Actor-Role"
	HeaderActor     = "X-Actor-ID"
	HeaderStation   = "X-Station"
	HeaderRequestID = "X-Request-ID"

	actorKey     = "actor"
	requestIDKey = "request_id"
)

// requestLogger пишет каждый запрос в slog с request_id
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(HeaderRequestID, rid)

		start := time.Now()
		c.Next()

		attrs := []any{
			"request_id", rid,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}

// actorFromHeaders аутентификация внешняя, здесь только заявленная личность
func actorFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := domain.Actor{
			TenantID: c.GetHeader(HeaderTenant),
			UserID:   c.GetHeader(HeaderActor),
			Role:     domain.Role(c.GetHeader(HeaderRole)),
			Station:  c.GetHeader(HeaderStation),
		}
		if actor.TenantID == "" {
			abortWithError(c, http.StatusBadRequest, "INVALID_INPUT", HeaderTenant+" header required")
			return
		}
		if !actor.Role.Valid() {
			abortWithError(c, http.StatusForbidden, "UNAUTHORIZED", "unknown actor role")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorOf(c *gin.Context) domain.Actor {
	v, _ := c.Get(actorKey)
	a, _ := v.(domain.Actor)
	return a
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}
