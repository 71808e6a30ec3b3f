package framer

import (
	"dcsingest/internal/calc"
	"dcsingest/internal/metrics"
	"sync"
	"sync/atomic"
	"time"
)

// Message length samples kept per collection interval
const maxLengthSamples int = 1024

type MetricStorage struct {
	Messages         atomic.Uint64 // messages emitted
	SkippedBytes     atomic.Uint64 // bytes discarded searching for boundaries
	ParseFailures    atomic.Uint64 // candidates rejected by the header parser
	InvalidLengths   atomic.Uint64 // explicit lengths out of range or runaway records
	ParityReplaced   atomic.Uint64 // bytes replaced by the parity sentinel
	UnknownPlatforms atomic.Uint64 // messages without a matching transport medium

	lengthMutex sync.Mutex
	lengths     []uint64
	lengthSeen  int
}

// Keeps the first samples of the interval, then overwrites round robin
func (storage *MetricStorage) recordLength(length int) {
	storage.lengthMutex.Lock()
	defer storage.lengthMutex.Unlock()

	if len(storage.lengths) < maxLengthSamples {
		storage.lengths = append(storage.lengths, uint64(length))
	} else {
		storage.lengths[storage.lengthSeen%maxLengthSamples] = uint64(length)
	}
	storage.lengthSeen++
}

func (storage *MetricStorage) takeLengths() (samples []uint64) {
	storage.lengthMutex.Lock()
	samples = storage.lengths
	storage.lengths = nil
	storage.lengthSeen = 0
	storage.lengthMutex.Unlock()
	return
}

func (framer *Framer) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	values := []struct {
		name        string
		description string
		raw         uint64
	}{
		{"messages", "Messages framed in the interval", framer.metrics.Messages.Swap(0)},
		{"skipped_bytes", "Bytes discarded searching for message boundaries in the interval", framer.metrics.SkippedBytes.Swap(0)},
		{"parse_failures", "Candidate messages rejected by the header parser in the interval", framer.metrics.ParseFailures.Swap(0)},
		{"invalid_lengths", "Messages dropped for out of range lengths in the interval", framer.metrics.InvalidLengths.Swap(0)},
		{"parity_replaced", "Bytes replaced after failing the parity check in the interval", framer.metrics.ParityReplaced.Swap(0)},
		{"unknown_platforms", "Messages without a matching platform in the interval", framer.metrics.UnknownPlatforms.Swap(0)},
	}

	recordTime := time.Now()
	for _, value := range values {
		unit := "count"
		if value.name == "skipped_bytes" || value.name == "parity_replaced" {
			unit = "bytes"
		}
		collection = append(collection, metrics.Metric{
			Name:        value.name,
			Description: value.description,
			Namespace:   framer.Namespace,
			Value: metrics.MetricValue{
				Raw:      value.raw,
				Unit:     unit,
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		})
	}

	lengths := calc.Summarize(framer.metrics.takeLengths(), 0.05)
	if lengths.Count == 0 {
		return
	}
	for _, value := range []struct {
		name        string
		description string
		raw         uint64
	}{
		{"message_length_mean", "Trimmed mean length of messages framed in the interval", lengths.TrimmedMean},
		{"message_length_min", "Shortest message framed in the interval", lengths.Min},
		{"message_length_max", "Longest message framed in the interval", lengths.Max},
	} {
		collection = append(collection, metrics.Metric{
			Name:        value.name,
			Description: value.description,
			Namespace:   framer.Namespace,
			Value: metrics.MetricValue{
				Raw:      value.raw,
				Unit:     "bytes",
				Interval: interval,
			},
			Type:      metrics.Summary,
			Timestamp: recordTime,
		})
	}
	return
}
