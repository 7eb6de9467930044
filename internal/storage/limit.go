package storage

import "io"

// DefaultMaxBytes caps fetched objects at 50 MiB.
const DefaultMaxBytes int64 = 50 << 20

// readLimited reads r fully, failing with ErrTooLarge once more than limit
// bytes arrive. size is the advertised length, or -1 when unknown.
func readLimited(key string, r io.Reader, size, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if size > limit {
		return nil, tooLarge(key, limit)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, transport(key, 0, err)
	}
	if int64(len(data)) > limit {
		return nil, tooLarge(key, limit)
	}
	return data, nil
}
