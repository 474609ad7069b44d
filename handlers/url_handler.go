// Package handlers provides HTTP request handlers for the URL shortener service.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"go-sequence-shortener/config"
	"go-sequence-shortener/services"
	"go-sequence-shortener/types"
)

const (
	invalidRequestBody = "Invalid request body"
	invalidURLProvided = "Invalid Url supplied"
	couldNotShorten    = "Could not shorten"
	errorCreatingURL   = "Error creating short URL"
	errorListingURLs   = "Error listing mappings"
	errorTimeout       = "Request timed out"
	shortURLExists     = "Short URL already exists"
	shortURLNotFound   = "ShortUrl not found"
)

// URLHandlerInterface defines the methods that a URL handler should implement.
type URLHandlerInterface interface {
	Shorten(c *gin.Context)
	ListAll(c *gin.Context)
	HealthCheck(c *gin.Context)
	RedirectURL(c *gin.Context)
}

// handleError is a helper function to handle errors and send appropriate responses
func (h *URLHandler) handleError(c *gin.Context, err error, customMessages map[error]string) {
	var statusCode int
	var errorMessage string

	switch {
	case errors.Is(err, services.ErrShortenFailed):
		statusCode = http.StatusServiceUnavailable
		errorMessage = customMessages[services.ErrShortenFailed]
	case errors.Is(err, services.ErrDuplicateShortURL):
		statusCode = http.StatusInternalServerError
		errorMessage = customMessages[services.ErrDuplicateShortURL]
	case errors.Is(err, services.ErrShortURLNotFound):
		statusCode = http.StatusNotFound
		errorMessage = customMessages[services.ErrShortURLNotFound]
	case errors.Is(err, services.ErrInvalidURL):
		statusCode = http.StatusBadRequest
		errorMessage = invalidURLProvided
	case errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusGatewayTimeout
		errorMessage = errorTimeout
	default:
		h.logger.Error("Unexpected error", zap.Error(err), zap.String("requestID", requestID(c)))
		statusCode = http.StatusInternalServerError
		errorMessage = customMessages[nil]
	}
	if errorMessage == "" {
		errorMessage = http.StatusText(statusCode)
	}

	c.JSON(statusCode, gin.H{"error": errorMessage})
}

// URLHandler struct holds the dependencies for handling URL-related operations.
type URLHandler struct {
	service  services.ShortenerService
	validate *validator.Validate
	config   *config.Config
	logger   *zap.Logger
}

// NewURLHandler creates and returns a new URLHandler instance.
func NewURLHandler(ctx context.Context, service services.ShortenerService, cfg *config.Config, logger *zap.Logger) (URLHandlerInterface, error) {
	if service == nil {
		return nil, errors.New("service cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, errors.New("request timeout must be positive")
	}

	handler := &URLHandler{
		service:  service,
		validate: validator.New(),
		config:   cfg,
		logger:   logger,
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return handler, nil
}

// Shorten handles POST /api/shorten. A fresh short URL is minted on every
// call, even for a long URL seen before.
func (h *URLHandler) Shorten(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
	defer cancel()

	var input types.ShortenRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Debug("Error decoding request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidRequestBody})
		return
	}

	input.URL = strings.TrimSpace(input.URL)
	if err := h.validate.Struct(input); err != nil {
		h.logger.Debug("Recognized invalid url", zap.String("url", input.URL), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidURLProvided})
		return
	}

	mapping, err := h.service.Shorten(ctx, input.URL)
	if err != nil {
		h.handleError(c, err, map[error]string{
			services.ErrShortenFailed:     couldNotShorten + " " + input.URL,
			services.ErrDuplicateShortURL: shortURLExists,
			nil:                           errorCreatingURL,
		})
		return
	}

	response := types.NewShortenResponse(mapping)
	if h.config.BaseURL != "" {
		response.Link = h.config.BaseURL + "/" + mapping.ShortURL
	}
	c.JSON(http.StatusCreated, response)
}

// ListAll handles GET /api/all.
func (h *URLHandler) ListAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
	defer cancel()

	mappings, err := h.service.ListAll(ctx)
	if err != nil {
		h.handleError(c, err, map[error]string{nil: errorListingURLs})
		return
	}
	if mappings == nil {
		mappings = []types.URLMapping{}
	}
	c.JSON(http.StatusOK, mappings)
}
