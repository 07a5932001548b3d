package imagesift

import (
	"log/slog"

	"github.com/visioform/imagesift/index"
)

type options struct {
	dimension        int
	indexOptions     []func(*index.Options)
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Engine constructor behavior.
type Option func(*options)

// WithDimension overrides the embedding dimension the engine provisions its
// index for. Without it the generator's dimension is used, falling back to
// index.DefaultDimension (384).
func WithDimension(dimension int) Option {
	return func(o *options) {
		o.dimension = dimension
	}
}

// WithIndexOptions forwards configuration to the underlying vector index,
// e.g. to enable write-ahead logging:
//
//	eng, _ := imagesift.New(cat, gen, imagesift.WithIndexOptions(func(o *index.Options) {
//	    o.WALPath = "./data/wal"
//	}))
func WithIndexOptions(optFns ...func(*index.Options)) Option {
	return func(o *options) {
		o.indexOptions = append(o.indexOptions, optFns...)
	}
}

// WithWAL enables write-ahead logging in the given directory. Convenience
// wrapper for WithIndexOptions.
func WithWAL(path string) Option {
	return func(o *options) {
		o.indexOptions = append(o.indexOptions, func(io *index.Options) {
			io.WALPath = path
		})
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &imagesift.BasicMetricsCollector{}
//	eng, _ := imagesift.New(cat, gen, imagesift.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := imagesift.NewJSONLogger(slog.LevelInfo)
//	eng, _ := imagesift.New(cat, gen, imagesift.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
