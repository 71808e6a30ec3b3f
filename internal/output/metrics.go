package output

import (
	"dcsingest/internal/metrics"
	"sync/atomic"
	"time"
)

type MetricStorage struct {
	Received atomic.Uint64 // messages taken from the queue
	Written  atomic.Uint64 // messages written or flushed by sinks
	Failed   atomic.Uint64 // sink write failures
}

func (worker *Worker) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	received := worker.metrics.Received.Swap(0)
	written := worker.metrics.Written.Swap(0)
	failed := worker.metrics.Failed.Swap(0)

	recordTime := time.Now()
	add := func(name, description string, raw uint64) {
		collection = append(collection, metrics.Metric{
			Name:        name,
			Description: description,
			Namespace:   worker.Namespace,
			Value: metrics.MetricValue{
				Raw:      raw,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		})
	}
	add("received_messages", "Messages taken from the output queue in the interval", received)
	add("written_messages", "Messages written to outputs in the interval", written)
	add("write_failures", "Failed output writes in the interval", failed)
	return
}
