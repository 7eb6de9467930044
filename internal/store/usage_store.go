package store

import (
	"context"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
)

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}

// UsageReporter reads back what a UsageStore recorded.
type UsageReporter interface {
	// Summary aggregates usage recorded at or after since.
	Summary(ctx context.Context, since time.Time) (UsageSummary, error)
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.UsageLog, error)
}

type UsageSummary struct {
	Transforms      int64 `json:"transforms"`
	PixelsProcessed int64 `json:"pixels_processed"`
	BytesSaved      int64 `json:"bytes_saved"`
	ComputeTimeMS   int64 `json:"compute_time_ms"`
}

func (s *UsageSummary) add(u domain.UsageLog) {
	s.Transforms++
	s.PixelsProcessed += u.PixelsProcessed
	s.BytesSaved += u.BytesSaved()
	s.ComputeTimeMS += u.ComputeTimeMS
}
