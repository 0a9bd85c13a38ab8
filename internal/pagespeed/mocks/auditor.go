package mocks

import (
	"context"
	"errors"
	"time"

	"github.com/sitepulse/audit-server/internal/lighthouse"
)

// MockAuditor is a mock implementation of the pagespeed.Auditor interface.
type MockAuditor struct {
	AuditFunc func(ctx context.Context, url string) (*lighthouse.Result, error)
	Calls     []string
}

func (m *MockAuditor) Audit(ctx context.Context, url string) (*lighthouse.Result, error) {
	m.Calls = append(m.Calls, url)
	if m.AuditFunc != nil {
		return m.AuditFunc(ctx, url)
	}
	return nil, errors.New("AuditFunc not implemented")
}

// MockCacher is an in-memory mock of the pagespeed.Cacher interface.
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
