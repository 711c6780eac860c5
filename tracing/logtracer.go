package tracing

import (
	"log"
)

// LogTracer writes every record to a logger, one line each.
type LogTracer struct {
	logger *log.Logger
}

// NewLogTracer creates a LogTracer. A nil logger means log.Default().
func NewLogTracer(logger *log.Logger) *LogTracer {
	if logger == nil {
		logger = log.Default()
	}

	return &LogTracer{logger: logger}
}

// Trace logs the record.
func (t *LogTracer) Trace(r Record) {
	t.logger.Printf("%12d ns  %-16s %-16s %s", r.Time, r.Where, r.Kind, r.What)
}
