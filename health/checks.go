package health

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"syscall"

	"github.com/campushq/corekit/transport"
)

// Pinger is the subset of *sql.DB the database check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

var _ Pinger = (*sql.DB)(nil)

// DatabaseCheck probes database connectivity. Register it as critical.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping: %w", err)
		}
		return nil
	}
}

// MemoryCheck fails when heap usage exceeds maxHeapBytes. With zero,
// it defaults to 1 GiB.
func MemoryCheck(maxHeapBytes uint64) CheckFunc {
	if maxHeapBytes == 0 {
		maxHeapBytes = 1 << 30
	}
	return func(_ context.Context) error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapAlloc > maxHeapBytes {
			return fmt.Errorf("heap usage %d bytes exceeds limit %d", ms.HeapAlloc, maxHeapBytes)
		}
		return nil
	}
}

// DiskCheck fails when the filesystem holding path has less than minFreeBytes
// available. With zero, minFreeBytes defaults to 256 MiB.
func DiskCheck(path string, minFreeBytes uint64) CheckFunc {
	if minFreeBytes == 0 {
		minFreeBytes = 256 << 20
	}
	return func(_ context.Context) error {
		var st syscall.Statfs_t
		if err := syscall.Statfs(path, &st); err != nil {
			return fmt.Errorf("statfs %s: %w", path, err)
		}
		free := st.Bavail * uint64(st.Bsize)
		if free < minFreeBytes {
			return fmt.Errorf("only %d bytes free on %s, need %d", free, path, minFreeBytes)
		}
		return nil
	}
}

// DependencyCheck probes another service's health endpoint over HTTP.
func DependencyCheck(doer transport.Doer, healthURL string) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := doer.Get(ctx, healthURL); err != nil {
			return fmt.Errorf("dependency %s: %w", healthURL, err)
		}
		return nil
	}
}
