package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-sequence-shortener/types"
)

// MockStorage is a mock Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) NextID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockStorage) Insert(ctx context.Context, mapping types.URLMapping) (types.URLMapping, error) {
	args := m.Called(ctx, mapping)
	return args.Get(0).(types.URLMapping), args.Error(1)
}

func (m *MockStorage) FindByShortURL(ctx context.Context, shortURL string) (types.URLMapping, error) {
	args := m.Called(ctx, shortURL)
	return args.Get(0).(types.URLMapping), args.Error(1)
}

func (m *MockStorage) FindAll(ctx context.Context) ([]types.URLMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.URLMapping), args.Error(1)
}

func (m *MockStorage) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}
