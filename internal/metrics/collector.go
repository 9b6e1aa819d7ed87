package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Stage counter names. They double as metric names for EmitMetric and as the
// "stage" label of the Prometheus counter.
const (
	TotalMessages     = "total_messages"
	SignalsDetected   = "signals_detected"
	SignalsParsed     = "signals_parsed"
	SignalsFailed     = "signals_failed"
	SignalsDispatched = "signals_dispatched"
	DispatchFailed    = "dispatch_failed"
)

// Collector counts every stage of the signal pipeline. All methods are safe
// for concurrent use. Counters only ever grow.
type Collector struct {
	totalMessages     atomic.Int64
	signalsDetected   atomic.Int64
	signalsParsed     atomic.Int64
	signalsFailed     atomic.Int64
	signalsDispatched atomic.Int64
	dispatchFailed    atomic.Int64

	fields sync.Map // field name -> *atomic.Int64

	started  time.Time
	registry *prometheus.Registry
	stages   *prometheus.CounterVec
	extracts *prometheus.CounterVec
}

// NewCollector creates a collector with its own Prometheus registry, which
// also carries the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		started:  time.Now(),
		registry: prometheus.NewRegistry(),
		stages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_stage_total",
				Help: "Number of messages that reached each pipeline stage",
			},
			[]string{"stage"},
		),
		extracts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_field_extracted_total",
				Help: "Number of successful field extractions",
			},
			[]string{"field"},
		),
	}

	c.registry.MustRegister(c.stages, c.extracts)
	c.registry.MustRegister(collectors.NewGoCollector())
	c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return c
}

// Registry exposes the Prometheus registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) MessageReceived()  { c.inc(&c.totalMessages, TotalMessages) }
func (c *Collector) SignalDetected()   { c.inc(&c.signalsDetected, SignalsDetected) }
func (c *Collector) SignalParsed()     { c.inc(&c.signalsParsed, SignalsParsed) }
func (c *Collector) SignalFailed()     { c.inc(&c.signalsFailed, SignalsFailed) }
func (c *Collector) SignalDispatched() { c.inc(&c.signalsDispatched, SignalsDispatched) }
func (c *Collector) DispatchFailed()   { c.inc(&c.dispatchFailed, DispatchFailed) }

func (c *Collector) inc(counter *atomic.Int64, stage string) {
	counter.Add(1)
	c.stages.WithLabelValues(stage).Inc()
}

// FieldExtracted records a successful extraction of the named field.
func (c *Collector) FieldExtracted(field string) {
	if field == "" {
		return
	}
	v, _ := c.fields.LoadOrStore(field, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
	c.extracts.WithLabelValues(field).Inc()
}

// Snapshot is a point-in-time copy of the collector.
type Snapshot struct {
	TotalMessages     int64            `json:"total_messages"`
	SignalsDetected   int64            `json:"signals_detected"`
	SignalsParsed     int64            `json:"signals_parsed"`
	SignalsFailed     int64            `json:"signals_failed"`
	SignalsDispatched int64            `json:"signals_dispatched"`
	DispatchFailed    int64            `json:"dispatch_failed"`
	FieldSuccess      map[string]int64 `json:"field_success"`
	SuccessRate       float64          `json:"success_rate"`
	Uptime            time.Duration    `json:"uptime_ns"`
}

// Snapshot reads every counter. Each value is read atomically but the set is
// not captured as a single transaction.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		TotalMessages:     c.totalMessages.Load(),
		SignalsDetected:   c.signalsDetected.Load(),
		SignalsParsed:     c.signalsParsed.Load(),
		SignalsFailed:     c.signalsFailed.Load(),
		SignalsDispatched: c.signalsDispatched.Load(),
		DispatchFailed:    c.dispatchFailed.Load(),
		FieldSuccess:      make(map[string]int64),
		Uptime:            time.Since(c.started),
	}
	c.fields.Range(func(k, v interface{}) bool {
		s.FieldSuccess[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	s.SuccessRate = SuccessRate(s.SignalsParsed, s.SignalsDetected)
	return s
}

// Counters returns the stage counters keyed by metric name.
func (s Snapshot) Counters() map[string]int64 {
	return map[string]int64{
		TotalMessages:     s.TotalMessages,
		SignalsDetected:   s.SignalsDetected,
		SignalsParsed:     s.SignalsParsed,
		SignalsFailed:     s.SignalsFailed,
		SignalsDispatched: s.SignalsDispatched,
		DispatchFailed:    s.DispatchFailed,
	}
}

// FieldNames returns the extracted field names in lexical order.
func (s Snapshot) FieldNames() []string {
	names := make([]string, 0, len(s.FieldSuccess))
	for name := range s.FieldSuccess {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SuccessRate is parsed/detected as a percentage, 0 when nothing was detected.
func SuccessRate(parsed, detected int64) float64 {
	if detected <= 0 {
		return 0
	}
	return float64(parsed) / float64(detected) * 100
}
