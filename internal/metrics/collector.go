package metrics

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"time"
)

// Periodically reads every collector into the registry and exporter and prunes old slices
func Run(ctx context.Context, registry *Registry, exporter *Exporter, interval, maxAge time.Duration, collectors func() []Collector) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMetric)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			count := CollectOnce(registry, exporter, now, interval, collectors())
			removed := registry.Prune(now, maxAge)
			logctx.LogEvent(ctx, global.VerbosityDebug, global.InfoLog,
				"collected %d metrics, pruned %d time slices\n", count, removed)
		}
	}
}

func CollectOnce(registry *Registry, exporter *Exporter, now time.Time, interval time.Duration, collectors []Collector) (count int) {
	timeSlice := registry.NewTimeSlice(now, interval)
	for _, collector := range collectors {
		batch := collector.CollectMetrics(interval)
		registry.Add(timeSlice, batch)
		if exporter != nil {
			exporter.Observe(batch)
		}
		count += len(batch)
	}
	return
}
