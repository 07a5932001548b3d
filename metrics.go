package imagesift

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    ingestCounter   prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordIngest(created, failed int, duration time.Duration) {
//	    p.ingestCounter.Add(float64(created))
//	    // ... record failures, duration, etc.
//	}
type MetricsCollector interface {
	// RecordIngest is called after each dataset ingestion run.
	// created is the number of embeddings stored, failed is the number of
	// images that could not be embedded, duration is the total time taken.
	RecordIngest(created, failed int, duration time.Duration)

	// RecordSearch is called after each similarity search.
	// found is the number of matches returned, err is nil if successful.
	RecordSearch(found int, duration time.Duration, err error)

	// RecordAnalysis is called after each analysis operation (duplicates,
	// outliers, clustering). op names the operation.
	RecordAnalysis(op string, duration time.Duration, err error)

	// RecordDelete is called after each image removal.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, int, time.Duration)          {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordAnalysis(string, time.Duration, error)   {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestRuns       atomic.Int64
	IngestCreated    atomic.Int64
	IngestFailed     atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	AnalysisCount    atomic.Int64
	AnalysisErrors   atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(created, failed int, duration time.Duration) {
	b.IngestRuns.Add(1)
	b.IngestCreated.Add(int64(created))
	b.IngestFailed.Add(int64(failed))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(found int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordAnalysis implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAnalysis(op string, duration time.Duration, err error) {
	b.AnalysisCount.Add(1)
	if err != nil {
		b.AnalysisErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestRuns:      b.IngestRuns.Load(),
		IngestCreated:   b.IngestCreated.Load(),
		IngestFailed:    b.IngestFailed.Load(),
		SearchCount:     b.SearchCount.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		SearchAvgNanos:  b.getAvgSearchNanos(),
		AnalysisCount:   b.AnalysisCount.Load(),
		AnalysisErrors:  b.AnalysisErrors.Load(),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestRuns     int64
	IngestCreated  int64
	IngestFailed   int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	AnalysisCount  int64
	AnalysisErrors int64
	DeleteCount    int64
	DeleteErrors   int64
}
