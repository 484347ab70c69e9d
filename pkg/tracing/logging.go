package tracing

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

var (
	_ Tracer = LoggingTracer{}
	_ Span   = (*loggingSpan)(nil)
)

// LoggingTracer reports finished spans as debug log records.
type LoggingTracer struct {
	logger *slog.Logger
}

func NewLoggingTracer(logger *slog.Logger) *LoggingTracer {
	return &LoggingTracer{
		logger: logger,
	}
}

//nolint:ireturn
func (l LoggingTracer) StartSpan(operationName string) Span {
	return &loggingSpan{
		logger:        l.logger,
		operationName: operationName,
		baggage:       make(map[string]any),
		start:         time.Now(),
	}
}

type loggingSpan struct {
	start         time.Time
	logger        *slog.Logger
	baggage       map[string]any
	operationName string
	mu            sync.Mutex
}

func (s *loggingSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := make([]slog.Attr, 0, len(s.baggage)+2)
	for _, k := range slices.Sorted(maps.Keys(s.baggage)) {
		attrs = append(attrs, slog.Any(k, s.baggage[k]))
	}

	attrs = append(attrs,
		slog.String("operation_name", s.operationName),
		slog.Float64("time_ms", time.Since(s.start).Seconds()*1e3),
	)

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

func (s *loggingSpan) SetBaggageItem(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baggage[key] = value
}
