package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-sequence-shortener/config"
	"go-sequence-shortener/services"
	"go-sequence-shortener/services/mocks"
	"go-sequence-shortener/types"
)

func TestNewURLHandler(t *testing.T) {
	tests := []struct {
		name        string
		service     services.ShortenerService
		cfg         *config.Config
		logger      *zap.Logger
		expectedErr string
	}{
		{
			name:        "Valid configuration",
			service:     &mocks.MockShortenerService{},
			cfg:         config.DefaultConfig(),
			logger:      zap.NewNop(),
			expectedErr: "",
		},
		{
			name:        "Nil service",
			service:     nil,
			cfg:         config.DefaultConfig(),
			logger:      zap.NewNop(),
			expectedErr: "service cannot be nil",
		},
		{
			name:        "Nil config",
			service:     &mocks.MockShortenerService{},
			cfg:         nil,
			logger:      zap.NewNop(),
			expectedErr: "config cannot be nil",
		},
		{
			name:        "Nil logger",
			service:     &mocks.MockShortenerService{},
			cfg:         config.DefaultConfig(),
			logger:      nil,
			expectedErr: "logger cannot be nil",
		},
		{
			name:        "Zero timeout",
			service:     &mocks.MockShortenerService{},
			cfg:         &config.Config{},
			logger:      zap.NewNop(),
			expectedErr: "request timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewURLHandler(context.Background(), tt.service, tt.cfg, tt.logger)

			if tt.expectedErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr)
				assert.Nil(t, handler)
			} else {
				require.NoError(t, err)

				concreteHandler, ok := handler.(*URLHandler)
				require.True(t, ok, "Handler is not of type *URLHandler")

				assert.Equal(t, tt.service, concreteHandler.service)
				assert.Equal(t, tt.cfg, concreteHandler.config)
				assert.Equal(t, tt.logger, concreteHandler.logger)
				assert.NotNil(t, concreteHandler.validate)
			}
		})
	}
}

func TestNewURLHandlerWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler, err := NewURLHandler(ctx, &mocks.MockShortenerService{}, config.DefaultConfig(), zap.NewNop())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
	assert.Nil(t, handler)
}

func setupTestHandler(t *testing.T, cfg *config.Config) (*URLHandler, *mocks.MockShortenerService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	mockService := new(mocks.MockShortenerService)
	handler, err := NewURLHandler(context.Background(), mockService, cfg, zap.NewNop())
	require.NoError(t, err)
	return handler.(*URLHandler), mockService
}

func performShorten(handler *URLHandler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/shorten", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Shorten(c)
	return w
}

func TestShorten(t *testing.T) {
	tests := []struct {
		name           string
		inputURL       string
		serviceResult  types.URLMapping
		serviceErr     error
		callsService   bool
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Valid URL",
			inputURL:       "https://example.com",
			serviceResult:  types.URLMapping{LongURL: "https://example.com", ShortURL: "a", CreatedAt: time.Now()},
			callsService:   true,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Very Long URL",
			inputURL:       "https://" + strings.Repeat("a", 200) + ".com/" + strings.Repeat("p", 2000),
			serviceResult:  types.URLMapping{ShortURL: "b"},
			callsService:   true,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Invalid URL",
			inputURL:       "not-a-url",
			expectedStatus: http.StatusBadRequest,
			expectedError:  invalidURLProvided,
		},
		{
			name:           "Empty URL",
			inputURL:       "",
			expectedStatus: http.StatusBadRequest,
			expectedError:  invalidURLProvided,
		},
		{
			name:           "Blank URL",
			inputURL:       "   ",
			expectedStatus: http.StatusBadRequest,
			expectedError:  invalidURLProvided,
		},
		{
			name:           "Retries exhausted",
			inputURL:       "https://example.com",
			serviceErr:     services.ErrShortenFailed,
			callsService:   true,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "Could not shorten https://example.com",
		},
		{
			name:           "Duplicate short URL",
			inputURL:       "https://example.com",
			serviceErr:     services.ErrDuplicateShortURL,
			callsService:   true,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  shortURLExists,
		},
		{
			name:           "Context Deadline Exceeded",
			inputURL:       "https://example.com",
			serviceErr:     context.DeadlineExceeded,
			callsService:   true,
			expectedStatus: http.StatusGatewayTimeout,
			expectedError:  errorTimeout,
		},
		{
			name:           "Unexpected error",
			inputURL:       "https://example.com",
			serviceErr:     errors.New("boom"),
			callsService:   true,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  errorCreatingURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mockService := setupTestHandler(t, nil)
			if tt.callsService {
				mockService.On("Shorten", mock.Anything, strings.TrimSpace(tt.inputURL)).
					Return(tt.serviceResult, tt.serviceErr).Once()
			}

			body, _ := json.Marshal(types.ShortenRequest{URL: tt.inputURL})
			w := performShorten(handler, string(body))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				var response map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, tt.expectedError, response["error"])
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestShortenResponseBody(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "https://sho.rt"
	handler, mockService := setupTestHandler(t, cfg)

	mockService.On("Shorten", mock.Anything, "https://example.com/a").
		Return(types.URLMapping{LongURL: "https://example.com/a", ShortURL: "ba"}, nil).Once()

	w := performShorten(handler, `{"url": " https://example.com/a "}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var response types.ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "https://example.com/a", response.LongURL)
	assert.Equal(t, "ba", response.ShortURL)
	assert.Equal(t, "https://sho.rt/ba", response.Link)
}

func TestShortenMalformedBody(t *testing.T) {
	handler, mockService := setupTestHandler(t, nil)

	w := performShorten(handler, `{"url": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), invalidRequestBody)
	mockService.AssertNotCalled(t, "Shorten", mock.Anything, mock.Anything)
}

func TestListAll(t *testing.T) {
	t.Run("Returns mappings", func(t *testing.T) {
		handler, mockService := setupTestHandler(t, nil)
		mockService.On("ListAll", mock.Anything).Return([]types.URLMapping{
			{LongURL: "https://example.com", ShortURL: "a"},
			{LongURL: "https://example.org", ShortURL: "b"},
		}, nil).Once()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/all", nil)
		handler.ListAll(c)

		require.Equal(t, http.StatusOK, w.Code)
		var response []types.URLMapping
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response, 2)
		assert.Equal(t, "b", response[1].ShortURL)
	})

	t.Run("Empty store gives empty array", func(t *testing.T) {
		handler, mockService := setupTestHandler(t, nil)
		mockService.On("ListAll", mock.Anything).Return(nil, nil).Once()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/all", nil)
		handler.ListAll(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("Storage error", func(t *testing.T) {
		handler, mockService := setupTestHandler(t, nil)
		mockService.On("ListAll", mock.Anything).Return(nil, errors.New("db down")).Once()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/all", nil)
		handler.ListAll(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), errorListingURLs)
	})
}

func TestHealthCheck(t *testing.T) {
	handler, _ := setupTestHandler(t, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	handler.HealthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
