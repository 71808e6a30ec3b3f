package queue

import (
	"dcsingest/internal/metrics"
	"sync/atomic"
	"time"
)

type MetricStorage struct {
	PushAttempts   atomic.Uint64 // every Push call
	PushSuccess    atomic.Uint64
	PushFull       atomic.Uint64 // rejected, queue full
	PushCASRetries atomic.Uint64

	PopAttempts   atomic.Uint64 // every Pop call
	PopSuccess    atomic.Uint64
	PopCASRetries atomic.Uint64
}

func (queue *Queue) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	var depth, bytes uint64
	rings := []*ring{queue.write.Load()}
	if read := queue.read.Load(); read != rings[0] {
		rings = append(rings, read)
	}
	for _, r := range rings {
		depth += r.depth.Load()
		bytes += r.bytes.Load()
	}

	recordTime := time.Now()

	add := func(name string, raw uint64, unit string, kind metrics.MetricType, description string) {
		collection = append(collection, metrics.Metric{
			Name:        name,
			Description: description,
			Namespace:   queue.Namespace,
			Type:        kind,
			Timestamp:   recordTime,
			Value: metrics.MetricValue{
				Raw:      raw,
				Unit:     unit,
				Interval: interval,
			},
		})
	}

	add("depth", depth, "count", metrics.Gauge, "Messages currently queued")
	add("byte_sum", bytes, "bytes", metrics.Gauge, "Byte sum of all queued messages")
	add("capacity", uint64(rings[0].capacity), "count", metrics.Gauge, "Capacity of the queue accepting writes")
	add("push_attempts", queue.metrics.PushAttempts.Swap(0), "count", metrics.Counter, "Push attempts in the interval")
	add("push_success", queue.metrics.PushSuccess.Swap(0), "count", metrics.Counter, "Successful pushes in the interval")
	add("push_full", queue.metrics.PushFull.Swap(0), "count", metrics.Counter, "Pushes rejected by a full queue in the interval")
	add("push_cas_retries", queue.metrics.PushCASRetries.Swap(0), "count", metrics.Counter, "Push retries under contention in the interval")
	add("pop_attempts", queue.metrics.PopAttempts.Swap(0), "count", metrics.Counter, "Pop attempts in the interval")
	add("pop_success", queue.metrics.PopSuccess.Swap(0), "count", metrics.Counter, "Successful pops in the interval")
	add("pop_cas_retries", queue.metrics.PopCASRetries.Swap(0), "count", metrics.Counter, "Pop retries under contention in the interval")
	return
}
