package mocks

import (
	"context"
	"errors"
	"time"

	"github.com/sitepulse/audit-server/internal/report"
)

// MockReportStore is a mock implementation of the server.ReportStore
// interface for testing the HTTP layer.
type MockReportStore struct {
	ListFunc   func(ctx context.Context) ([]report.Run, error)
	LatestFunc func(ctx context.Context) ([]byte, error)
	GetFunc    func(ctx context.Context, name string) ([]byte, error)
}

func (m *MockReportStore) List(ctx context.Context) ([]report.Run, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, errors.New("ListFunc not implemented")
}

func (m *MockReportStore) Latest(ctx context.Context) ([]byte, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx)
	}
	return nil, errors.New("LatestFunc not implemented")
}

func (m *MockReportStore) Get(ctx context.Context, name string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, name)
	}
	return nil, errors.New("GetFunc not implemented")
}

// MockCacher is a mock implementation of the server.Cacher interface.
type MockCacher struct {
	GetFunc func(ctx context.Context, key string, dest any) error
	SetFunc func(ctx context.Context, key string, value any, expiration time.Duration) error
}

func (m *MockCacher) Get(ctx context.Context, key string, dest any) error {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dest)
	}
	return errors.New("GetFunc not implemented")
}

func (m *MockCacher) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return errors.New("SetFunc not implemented")
}
