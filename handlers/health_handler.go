package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles the health check endpoint.
func (h *URLHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
