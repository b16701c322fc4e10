package upload

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the upload metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "formfile").
	Namespace string

	// Subsystem is the metrics subsystem (default: "upload").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request parsing.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the upload metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "formfile",
		Subsystem: "upload",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for uploads.
// A nil *Metrics records nothing.
//
// Metrics collected:
//   - formfile_upload_files_extracted_total: files returned by GetSingle/GetAll, by op
//   - formfile_upload_errors_total: upload entries rejected, by code
//   - formfile_upload_moves_total: Move calls, by result
//   - formfile_upload_content_reads_total: content reads, by op and result
//   - formfile_upload_parse_duration_seconds: time spent spooling a request
type Metrics struct {
	filesExtracted *prometheus.CounterVec
	uploadErrors   *prometheus.CounterVec
	moves          *prometheus.CounterVec
	contentReads   *prometheus.CounterVec
	parseDuration  prometheus.Histogram
}

// NewMetrics registers the upload collectors.
// It panics if they are already registered with the chosen registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		filesExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "files_extracted_total",
			Help:        "Total number of uploaded files handed to callers",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		uploadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of upload entries rejected, by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		moves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "moves_total",
			Help:        "Total number of attempts to relocate an uploaded file",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		contentReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "content_reads_total",
			Help:        "Total number of uploaded file content reads",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "result"}),

		parseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "parse_duration_seconds",
			Help:        "Time spent reading and spooling a multipart request",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

func (m *Metrics) recordExtracted(op string, n int) {
	if m == nil {
		return
	}
	m.filesExtracted.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) recordUploadError(code ErrorCode) {
	if m == nil {
		return
	}
	m.uploadErrors.WithLabelValues(code.String()).Inc()
}

func (m *Metrics) recordMove(err error) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(moveResult(err)).Inc()
}

func (m *Metrics) recordRead(op string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.contentReads.WithLabelValues(op, result).Inc()
}

func (m *Metrics) observeParse(start time.Time) {
	if m == nil {
		return
	}
	m.parseDuration.Observe(time.Since(start).Seconds())
}

// moveResult buckets a Move outcome into a small label set.
func moveResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyMoved):
		return "already_moved"
	case errors.Is(err, ErrNotUploaded):
		return "not_uploaded"
	default:
		return "error"
	}
}
