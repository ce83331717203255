package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Checker
	order  []string
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]Checker)}
}

// Register adds a readiness check under name. Checks run in registration order.
func (h *HealthHandler) Register(name string, check Checker) *HealthHandler {
	if _, ok := h.checks[name]; !ok {
		h.order = append(h.order, name)
	}
	h.checks[name] = check
	return h
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	resp := gin.H{"status": "ok"}
	for _, name := range h.order {
		if err := h.checks[name](ctx); err != nil {
			resp[name] = "unavailable"
			resp["status"] = "error"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp[name] = "connected"
	}

	c.JSON(http.StatusOK, resp)
}
