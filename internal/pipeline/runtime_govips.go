//go:build govips && cgo

package pipeline

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

const (
	vipsCacheBytes = 128 << 20
	vipsCacheOps   = 100
)

var vipsRuntime struct {
	mu      sync.Mutex
	running bool
}

// Startup initialises libvips. The compute pool owns parallelism, so each
// libvips operation runs on one thread. Calling it twice is a no-op.
func Startup() error {
	vipsRuntime.mu.Lock()
	defer vipsRuntime.mu.Unlock()
	if vipsRuntime.running {
		return nil
	}
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      vipsCacheBytes,
		MaxCacheSize:     vipsCacheOps,
	})
	vipsRuntime.running = true
	return nil
}

// Shutdown releases libvips. Transforms must not run afterwards.
func Shutdown() {
	vipsRuntime.mu.Lock()
	defer vipsRuntime.mu.Unlock()
	if vipsRuntime.running {
		vips.Shutdown()
		vipsRuntime.running = false
	}
}

func Backend() string {
	return "govips"
}

func newCodec() codec {
	return vipsCodec{}
}
