// Package metrics provides vendor-neutral metrics collection and export in
// the Prometheus text format, written as a node_exporter textfile.
package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Counter represents a monotonically increasing counter
type Counter struct {
	mu    sync.RWMutex
	value float64
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds the given value to the counter
func (c *Counter) Add(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
}

// Value returns the current counter value
func (c *Counter) Value() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Gauge represents a value that can go up and down
type Gauge struct {
	mu    sync.RWMutex
	value float64
}

// Set sets the gauge to the given value
func (g *Gauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	g.Add(1)
}

// Add adds the given value to the gauge
func (g *Gauge) Add(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value += delta
}

// Value returns the current gauge value
func (g *Gauge) Value() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

type series struct {
	name   string
	labels string // rendered {k="v",...}, empty without labels
	kind   string
	help   string
	value  func() float64
}

// Registry holds all metrics
type Registry struct {
	mu     sync.RWMutex
	series map[string]*series
	help   map[string]string
	values map[string]interface{}
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		series: make(map[string]*series),
		help:   make(map[string]string),
		values: make(map[string]interface{}),
	}
}

// Help sets the HELP text of a metric family
func (r *Registry) Help(name, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.help[name] = text
}

// Counter gets or creates a counter
func (r *Registry) Counter(name string, labels map[string]string) *Counter {
	key := name + formatLabels(labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.values[key].(*Counter); ok {
		return c
	}

	c := &Counter{}
	r.values[key] = c
	r.series[key] = &series{name: name, labels: formatLabels(labels), kind: "counter", value: c.Value}
	return c
}

// Gauge gets or creates a gauge
func (r *Registry) Gauge(name string, labels map[string]string) *Gauge {
	key := name + formatLabels(labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.values[key].(*Gauge); ok {
		return g
	}

	g := &Gauge{}
	r.values[key] = g
	r.series[key] = &series{name: name, labels: formatLabels(labels), kind: "gauge", value: g.Value}
	return g
}

// formatLabels renders labels in key order: {key1="value1",key2="value2"}
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strconv.Quote(labels[k])))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ExportPrometheus exports metrics in Prometheus text format. Families and
// series are sorted so identical registries render identically. No
// timestamps are written; the textfile collector rejects them.
func (r *Registry) ExportPrometheus() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := r.series[keys[i]], r.series[keys[j]]
		if a.name != b.name {
			return a.name < b.name
		}
		return a.labels < b.labels
	})

	var sb strings.Builder
	family := ""
	for _, k := range keys {
		s := r.series[k]
		if s.name != family {
			family = s.name
			if help, ok := r.help[s.name]; ok {
				sb.WriteString(fmt.Sprintf("# HELP %s %s\n", s.name, help))
			}
			sb.WriteString(fmt.Sprintf("# TYPE %s %s\n", s.name, s.kind))
		}
		sb.WriteString(fmt.Sprintf("%s%s %s\n", s.name, s.labels, strconv.FormatFloat(s.value(), 'g', -1, 64)))
	}
	return sb.String()
}
