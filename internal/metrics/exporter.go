package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type exported struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value float64
}

// Prometheus view of collected metrics. Interval counters accumulate into running totals,
// gauges keep their latest value.
type Exporter struct {
	prefix string
	mutex  sync.Mutex
	series map[string]*exported
}

func NewExporter(prefix string) (exporter *Exporter) {
	exporter = &Exporter{
		prefix: prefix,
		series: make(map[string]*exported),
	}
	return
}

// Feeds one collection round into the exporter
func (exporter *Exporter) Observe(batch []Metric) {
	exporter.mutex.Lock()
	defer exporter.mutex.Unlock()

	for _, metric := range batch {
		value, ok := metric.Value.Float()
		if !ok {
			continue
		}

		name := exporter.seriesName(metric)
		label := strings.Join(metric.Namespace, "/")
		key := name + "|" + label

		current, exists := exporter.series[key]
		if !exists {
			kind := prometheus.GaugeValue
			if metric.Type == Counter {
				kind = prometheus.CounterValue
			}
			current = &exported{
				desc: prometheus.NewDesc(name, metric.Description, nil,
					prometheus.Labels{"namespace": label}),
				kind: kind,
			}
			exporter.series[key] = current
		}

		if current.kind == prometheus.CounterValue {
			current.value += value
		} else {
			current.value = value
		}
	}
}

func (exporter *Exporter) seriesName(metric Metric) (name string) {
	parts := []string{exporter.prefix}
	if len(metric.Namespace) > 0 {
		parts = append(parts, strings.ToLower(metric.Namespace[0]))
	}
	parts = append(parts, metric.Name)
	if metric.Type == Counter {
		parts = append(parts, "total")
	}
	name = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(strings.Join(parts, "_"))
	return
}

// Series appear as components report, so the exporter registers unchecked
func (exporter *Exporter) Describe(descs chan<- *prometheus.Desc) {}

func (exporter *Exporter) Collect(out chan<- prometheus.Metric) {
	exporter.mutex.Lock()
	defer exporter.mutex.Unlock()
	for _, current := range exporter.series {
		out <- prometheus.MustNewConstMetric(current.desc, current.kind, current.value)
	}
}
