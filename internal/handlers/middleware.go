package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey       = "userId"
	requestIDKey    = "requestId"
	requestIDHeader = "X-Request-ID"
)

// requestIDMiddleware echoes the caller's request stamp so a client can match
// replies to the poll that issued them.
func (h *Handler) requestIDMiddleware(c *gin.Context) {
	if id := c.GetHeader(requestIDHeader); id != "" {
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
	}
	c.Next()
}

func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		h.deny(c, "missing Authorization header")
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		h.deny(c, "invalid Authorization header format")
		return
	}

	userId, err := h.services.ParseToken(token)
	if err != nil {
		h.log.Debugw("token_rejected", "path", c.FullPath(), "request_id", c.GetString(requestIDKey), "error", err)
		h.deny(c, "invalid or expired token")
		return
	}

	c.Set(userIDKey, userId)
	c.Next()
}

func (h *Handler) deny(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
}
