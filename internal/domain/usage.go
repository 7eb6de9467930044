package domain

import "time"

// UsageLog is one successful transformation, recorded for accounting.
type UsageLog struct {
	ID              string
	ObjectKey       string
	Format          OutputFormat
	SourceBytes     int64
	OutputBytes     int64
	PixelsProcessed int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}

// BytesSaved is never negative; re-encoding may grow small inputs.
func (u UsageLog) BytesSaved() int64 {
	saved := u.SourceBytes - u.OutputBytes
	if saved < 0 {
		return 0
	}
	return saved
}
