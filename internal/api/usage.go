package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/dunamismax/mediaproc/internal/store"
)

const (
	defaultUsageWindow = 24 * time.Hour
	defaultUsageLimit  = 20
	maxUsageLimit      = 100
)

type usageEntry struct {
	ID              string    `json:"id"`
	Key             string    `json:"key"`
	Format          string    `json:"format"`
	SourceBytes     int64     `json:"source_bytes"`
	OutputBytes     int64     `json:"output_bytes"`
	BytesSaved      int64     `json:"bytes_saved"`
	PixelsProcessed int64     `json:"pixels_processed"`
	ComputeTimeMS   int64     `json:"compute_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

type usageResponse struct {
	Since   time.Time          `json:"since"`
	Summary store.UsageSummary `json:"summary"`
	Recent  []usageEntry       `json:"recent"`
}

// handleUsage reports aggregate usage over ?since= (a duration, default 24h)
// and the ?limit= most recent transforms.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "usage reporting disabled"})
		return
	}

	window, limit, err := parseUsageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	since := time.Now().UTC().Add(-window)
	summary, err := s.usage.Summary(r.Context(), since)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recent, err := s.usage.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := usageResponse{Since: since, Summary: summary, Recent: make([]usageEntry, 0, len(recent))}
	for _, u := range recent {
		resp.Recent = append(resp.Recent, newUsageEntry(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseUsageQuery(r *http.Request) (time.Duration, int, error) {
	q := r.URL.Query()

	window := defaultUsageWindow
	if raw := q.Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return 0, 0, &QueryError{Param: "since", Value: raw, Want: "a positive duration"}
		}
		window = d
	}

	limit := defaultUsageLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, &QueryError{Param: "limit", Value: raw, Want: "a non-negative integer"}
		}
		limit = min(n, maxUsageLimit)
	}
	return window, limit, nil
}

func newUsageEntry(u domain.UsageLog) usageEntry {
	return usageEntry{
		ID:              u.ID,
		Key:             u.ObjectKey,
		Format:          string(u.Format),
		SourceBytes:     u.SourceBytes,
		OutputBytes:     u.OutputBytes,
		BytesSaved:      u.BytesSaved(),
		PixelsProcessed: u.PixelsProcessed,
		ComputeTimeMS:   u.ComputeTimeMS,
		CreatedAt:       u.CreatedAt,
	}
}
