package group

import (
	"dcsingest/internal/metrics"
	"sync/atomic"
	"time"
)

type MetricStorage struct {
	Activations atomic.Uint64 // members brought into service
	Failures    atomic.Uint64 // members dropped after a read failure
}

func collect(namespace []string, storage *MetricStorage, interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	activations := storage.Activations.Swap(0)
	failures := storage.Failures.Swap(0)

	recordTime := time.Now()
	collection = []metrics.Metric{
		{
			Name:        "activations",
			Description: "Members activated in the interval",
			Namespace:   namespace,
			Value: metrics.MetricValue{
				Raw:      activations,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "member_failures",
			Description: "Members dropped after a failed read in the interval",
			Namespace:   namespace,
			Value: metrics.MetricValue{
				Raw:      failures,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
	}
	return
}

func (group *HotBackup) CollectMetrics(interval time.Duration) []metrics.Metric {
	return collect(group.Namespace, &group.metrics, interval)
}

func (group *RoundRobin) CollectMetrics(interval time.Duration) []metrics.Metric {
	return collect(group.Namespace, &group.metrics, interval)
}
