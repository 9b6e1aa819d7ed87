package metrics

import (
	"context"
	"time"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
)

const reportComponent = "signal_metrics"

// Report logs a snapshot of c as a single entry and emits each counter
// through EmitMetric. It returns the snapshot that was reported.
func Report(log *logger.Log, c *Collector) Snapshot {
	if log == nil {
		log = logger.GetLogger()
	}
	s := c.Snapshot()

	fields := logger.Fields{
		"uptime":       s.Uptime.Round(time.Second).String(),
		"success_rate": s.SuccessRate,
	}
	for name, value := range s.Counters() {
		fields[name] = value
		EmitMetric(log, reportComponent, name, value, "counter", logger.Fields{"unit": "count"})
	}
	for _, name := range s.FieldNames() {
		fields["field_"+name] = s.FieldSuccess[name]
		EmitMetric(log, reportComponent, "field_extracted", s.FieldSuccess[name], "counter", logger.Fields{"unit": "count", "field": name})
	}
	EmitMetric(log, reportComponent, "success_rate", s.SuccessRate, "gauge", logger.Fields{"unit": "percent"})

	if counts := logger.LevelCounts(); len(counts) > 0 {
		fields["log_levels"] = counts
	}

	log.WithComponent(reportComponent).WithFields(fields).Info("signal metrics report")
	return s
}

// StartReport reports c every interval until ctx is cancelled.
func StartReport(ctx context.Context, log *logger.Log, c *Collector, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				Report(log, c)
			}
		}
	}()
}
