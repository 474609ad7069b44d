package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-sequence-shortener/services"
)

const (
	errRetrievingURL      = "Could not resolve shortUrl"
	errInvalidRedirectURL = "Invalid redirect URL"
)

// RedirectURL answers GET /:short_url with a 302 to the long URL.
func (h *URLHandler) RedirectURL(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
	defer cancel()

	shortURL := c.Param("short_url")

	longURL, err := h.service.Resolve(ctx, shortURL)
	if err != nil {
		h.handleRedirectError(c, err, shortURL)
		return
	}

	// stored URLs were validated on the way in, this guards against
	// rows written by other tools
	if err := h.validate.Var(longURL, "url"); err != nil {
		h.logger.Warn("Invalid long URL",
			zap.String("shortURL", shortURL),
			zap.String("longURL", longURL))
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRedirectURL})
		return
	}

	h.logger.Debug("Redirecting",
		zap.String("shortURL", shortURL),
		zap.String("longURL", longURL),
		zap.String("ip", c.ClientIP()))
	c.Redirect(http.StatusFound, longURL)
}

func (h *URLHandler) handleRedirectError(c *gin.Context, err error, shortURL string) {
	switch {
	case errors.Is(err, services.ErrShortURLNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": shortURLNotFound})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("Request timed out", zap.String("shortURL", shortURL))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": errorTimeout})
	default:
		h.logger.Error("Error retrieving URL", zap.String("shortURL", shortURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errRetrievingURL})
	}
}
