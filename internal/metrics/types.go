// Time sliced metric registry fed by component collectors and exported over HTTP
package metrics

import (
	"sync"
	"time"
)

type Registry struct {
	mu      sync.RWMutex
	metrics map[time.Time]map[string]map[string]Metric // slice start -> namespace -> name
}

type MetricType string

const (
	Counter MetricType = "counter" // per interval increments
	Gauge   MetricType = "gauge"   // point in time value
	Summary MetricType = "summary" // avg/min/max
)

type Metric struct {
	Name        string // e.g. skipped_bytes, depth
	Description string
	Namespace   []string // e.g. Framer/dcp-feed
	Value       MetricValue
	Type        MetricType
	Timestamp   time.Time // when the value was read
}

type MetricValue struct {
	Raw      any           // uint64, int64, float64
	Unit     string        // count, bytes, ns
	Interval time.Duration // collection window
}

// JSON form served by the query endpoints
type JMetric struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Namespace   string       `json:"namespace"`
	Value       JMetricValue `json:"value"`
	Type        string       `json:"type"`
	Timestamp   string       `json:"timestamp"`
}

type JMetricValue struct {
	Raw      string `json:"raw"`
	Unit     string `json:"unit"`
	Interval string `json:"interval"`
}

// Implemented by every component exposing counters
type Collector interface {
	CollectMetrics(interval time.Duration) []Metric
}
