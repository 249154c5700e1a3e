package debug

// Runtime metrics logger, started only when config.Debug is true.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// StartRuntimeLogger logs goroutine count, heap and stack usage, plus the
// value of queued (if set) every interval until ctx is done.
func StartRuntimeLogger(ctx context.Context, interval time.Duration, logger *slog.Logger, queued func() int) {
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("runtime logger panic", "panic", r)
			}
		}()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Info("runtime", Sample(queued)...)
			}
		}
	}()
}

// Sample reads the current runtime figures as slog attributes.
func Sample(queued func() int) []any {
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	metrics.Read(samples)
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	attrs := []any{
		slog.Uint64("goroutines", samples[0].Value.Uint64()),
		slog.Uint64("heap_alloc", ms.HeapAlloc),
		slog.Uint64("stack_inuse", ms.StackInuse),
	}
	if queued != nil {
		attrs = append(attrs, slog.Int("queued", queued()))
	}
	return attrs
}
