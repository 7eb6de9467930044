package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/dunamismax/mediaproc/internal/domain"
)

// parseTransformQuery reads w, h, f and q. Empty values count as absent.
// Range checks are left to the processor.
func parseTransformQuery(values url.Values, defaultQuality int) (domain.TransformParams, error) {
	width, err := optionalInt(values, "w")
	if err != nil {
		return domain.TransformParams{}, err
	}
	height, err := optionalInt(values, "h")
	if err != nil {
		return domain.TransformParams{}, err
	}
	quality, err := optionalInt(values, "q")
	if err != nil {
		return domain.TransformParams{}, err
	}

	var format domain.OutputFormat
	if token := values.Get("f"); token != "" {
		format, err = domain.ParseOutputFormat(token)
		if err != nil {
			return domain.TransformParams{}, err
		}
	}

	if quality == nil {
		quality = domain.Int(defaultQuality)
	}
	return domain.NewTransformParams(width, height, format, quality), nil
}

func optionalInt(values url.Values, name string) (*int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &QueryError{Param: name, Value: raw}
	}
	return &v, nil
}

// computeETag hashes the decoded key with the normalized parameters, so
// equivalent requests share a tag.
func computeETag(key string, params domain.TransformParams) string {
	var b strings.Builder
	b.WriteString(key)
	b.WriteString("|w=")
	if params.Width != nil {
		b.WriteString(strconv.Itoa(*params.Width))
	}
	b.WriteString("|h=")
	if params.Height != nil {
		b.WriteString(strconv.Itoa(*params.Height))
	}
	b.WriteString("|f=")
	b.WriteString(string(params.Format))
	b.WriteString("|q=")
	b.WriteString(strconv.Itoa(params.Quality))

	sum := sha256.Sum256([]byte(b.String()))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
