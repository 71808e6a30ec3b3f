package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

func New() (registry *Registry) {
	registry = &Registry{
		metrics: make(map[time.Time]map[string]map[string]Metric),
	}
	return
}

// Returns the slice key for now, rounded down to the interval
func (registry *Registry) NewTimeSlice(now time.Time, interval time.Duration) (timeSlice time.Time) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	timeSlice = now
	if interval > 0 {
		timeSlice = now.Truncate(interval)
	}
	if registry.metrics[timeSlice] == nil {
		registry.metrics[timeSlice] = make(map[string]map[string]Metric)
	}
	return
}

// Stores a batch in an existing slice
func (registry *Registry) Add(timeSlice time.Time, batch []Metric) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	slice := registry.metrics[timeSlice]
	if slice == nil {
		return
	}
	for _, metric := range batch {
		namespace := strings.Join(metric.Namespace, "/")
		if slice[namespace] == nil {
			slice[namespace] = make(map[string]Metric)
		}
		slice[namespace][metric.Name] = metric
	}
}

// Drops slices older than maxAge
func (registry *Registry) Prune(now time.Time, maxAge time.Duration) (removed int) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for timeSlice := range registry.metrics {
		if now.Sub(timeSlice) > maxAge {
			delete(registry.metrics, timeSlice)
			removed++
		}
	}
	return
}

// Prefix match on namespace components, empty query matches everything
func matchesNamespace(metricNS, queryNS []string) bool {
	if len(metricNS) < len(queryNS) {
		return false
	}
	for i := range queryNS {
		if queryNS[i] != "" && metricNS[i] != queryNS[i] {
			return false
		}
	}
	return true
}

// Metrics matching name (empty for all) under the namespace prefix within [start, end], oldest first
func (registry *Registry) Search(name string, namespacePrefix []string, start, end time.Time) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var slices []time.Time
	for timeSlice := range registry.metrics {
		if !start.IsZero() && timeSlice.Before(start) {
			continue
		}
		if !end.IsZero() && timeSlice.After(end) {
			continue
		}
		slices = append(slices, timeSlice)
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].Before(slices[j]) })

	for _, timeSlice := range slices {
		namespaces := make([]string, 0, len(registry.metrics[timeSlice]))
		for namespace := range registry.metrics[timeSlice] {
			namespaces = append(namespaces, namespace)
		}
		sort.Strings(namespaces)

		for _, namespace := range namespaces {
			if !matchesNamespace(strings.Split(namespace, "/"), namespacePrefix) {
				continue
			}
			for metricName, metric := range registry.metrics[timeSlice][namespace] {
				if name == "" || metricName == name {
					results = append(results, metric)
				}
			}
		}
	}
	return
}

// One template per distinct metric (no values or timestamps), sorted by name then namespace
func (registry *Registry) Discover(name string, namespacePrefix []string, metricType MetricType) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]Metric)
	for _, namespaces := range registry.metrics {
		for namespace, named := range namespaces {
			if !matchesNamespace(strings.Split(namespace, "/"), namespacePrefix) {
				continue
			}
			for _, metric := range named {
				if name != "" && !strings.Contains(metric.Name, name) {
					continue
				}
				if metricType != "" && metric.Type != metricType {
					continue
				}
				key := namespace + "|" + metric.Name
				if _, exists := seen[key]; exists {
					continue
				}
				seen[key] = Metric{
					Name:        metric.Name,
					Description: metric.Description,
					Namespace:   metric.Namespace,
					Type:        metric.Type,
					Value:       MetricValue{Unit: metric.Value.Unit},
				}
			}
		}
	}

	results = make([]Metric, 0, len(seen))
	for _, metric := range seen {
		results = append(results, metric)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return strings.Join(results[i].Namespace, "/") < strings.Join(results[j].Namespace, "/")
	})
	return
}

func (metric Metric) Convert() (out JMetric) {
	out = JMetric{
		Name:        metric.Name,
		Description: metric.Description,
		Namespace:   strings.Join(metric.Namespace, "/"),
		Type:        string(metric.Type),
		Timestamp:   metric.Timestamp.Format(time.RFC3339Nano),
		Value: JMetricValue{
			Raw:      fmt.Sprintf("%v", metric.Value.Raw),
			Unit:     metric.Value.Unit,
			Interval: metric.Value.Interval.String(),
		},
	}
	return
}

// Numeric view of a raw value
func (value MetricValue) Float() (number float64, ok bool) {
	ok = true
	switch raw := value.Raw.(type) {
	case uint64:
		number = float64(raw)
	case int64:
		number = float64(raw)
	case int:
		number = float64(raw)
	case float64:
		number = raw
	default:
		ok = false
	}
	return
}
