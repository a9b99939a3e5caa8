package handlers

import (
	"net/http"
	"strings"
	"time"

	"library_api/internal/models"
	"library_api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxUserKey      = "user"
	ctxRequestIDKey = "request_id"
)

// requestLogger tags every request with an id and logs its outcome.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	reqID := c.GetHeader(requestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Set(ctxRequestIDKey, reqID)
	c.Header(requestIDHeader, reqID)

	c.Next()

	if h.log != nil {
		h.log.Infow("http_request",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// authMiddleware resolves the bearer token to a user and stores it in the Gin context.
func (h *Handler) authMiddleware(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		h.abortUnauthenticated(c, "Not authenticated")
		return
	}

	user, err := h.services.Authenticate(c.Request.Context(), token)
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			h.abortUnauthenticated(c, err.Error())
			return
		}
		h.respondError(c, "auth_lookup_failed", err)
		c.Abort()
		return
	}

	// store in Gin context
	c.Set(ctxUserKey, user)
	c.Next()
}

// adminMiddleware must run after authMiddleware.
func (h *Handler) adminMiddleware(c *gin.Context) {
	if err := service.RequireAdmin(currentUser(c)); err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func (h *Handler) abortUnauthenticated(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// currentUser returns the authenticated user, or nil on public routes.
func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
