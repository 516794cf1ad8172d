package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal общее количество HTTP запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность HTTP запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// FetchesTotal запросы к сенсорному endpoint-у по исходу
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_fetches_total",
			Help: "Total number of sensor fetch attempts",
		},
		[]string{"status"},
	)

	// SnapshotsTotal классификация снапшотов: new / duplicate
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_total",
			Help: "Total number of snapshots by classification",
		},
		[]string{"result"},
	)

	// FoldsTotal применённые fold-ы по исходу
	FoldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucket_folds_total",
			Help: "Total number of day bucket folds",
		},
		[]string{"status"},
	)

	// PollDuration длительность одного цикла опроса
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poll_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// AlertsFired сработавшие правила по области применения
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_fired_total",
			Help: "Total number of threshold alerts fired",
		},
		[]string{"scope"},
	)

	// NotificationsSent доставки сообщений подписчикам
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"status"},
	)

	// SummaryRuns запуски дневной сводки
	SummaryRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_runs_total",
			Help: "Total number of daily summary runs",
		},
		[]string{"status"},
	)

	// RedisOperations операции с Redis
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	// SubscribersRegistered число зарегистрированных подписчиков
	SubscribersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscribers_registered_total",
			Help: "Total number of newly registered subscribers",
		},
	)

	// DayBucketCount счетчик снапшотов в бакете текущего дня
	DayBucketCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "day_bucket_count",
			Help: "Number of snapshots folded into the current day bucket",
		},
	)
)
