package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CapturesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "captures_processed_total",
		Help:      "Total number of capture images processed",
	}, []string{"source"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected in captures",
	})

	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "faces_recognized_total",
		Help:      "Total number of faces matched against enrolled templates",
	})

	AttendanceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "attendance_outcomes_total",
		Help:      "Attendance reconciliation outcomes by kind",
	}, []string{"outcome"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "inference_duration_seconds",
		Help:      "Duration of detection/extraction/recognition stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	TemplatesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "templates_loaded",
		Help:      "Number of face templates in the current snapshot",
	})

	RetentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "retention_deleted_total",
		Help:      "Temporary capture images removed by the retention sweeper",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "queue_depth",
		Help:      "Number of pending capture tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
