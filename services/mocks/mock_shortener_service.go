package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-sequence-shortener/types"
)

// MockShortenerService is a mock ShortenerService interface
type MockShortenerService struct {
	mock.Mock
}

func (m *MockShortenerService) Shorten(ctx context.Context, longURL string) (types.URLMapping, error) {
	args := m.Called(ctx, longURL)
	return args.Get(0).(types.URLMapping), args.Error(1)
}

func (m *MockShortenerService) Resolve(ctx context.Context, shortURL string) (string, error) {
	args := m.Called(ctx, shortURL)
	return args.String(0), args.Error(1)
}

func (m *MockShortenerService) ListAll(ctx context.Context) ([]types.URLMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.URLMapping), args.Error(1)
}

func (m *MockShortenerService) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockShortenerService) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
