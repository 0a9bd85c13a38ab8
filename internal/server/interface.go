package server

import (
	"context"
	"time"

	"github.com/sitepulse/audit-server/internal/report"
)

// ReportStore is the slice of the report store the HTTP surface needs.
type ReportStore interface {
	List(ctx context.Context) ([]report.Run, error)
	Latest(ctx context.Context) ([]byte, error)
	Get(ctx context.Context, name string) ([]byte, error)
}

// Cacher defines the interface for cache operations.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}
