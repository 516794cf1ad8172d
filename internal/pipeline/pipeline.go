package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"plantbot/internal/aggregate"
	"plantbot/internal/alerting"
	"plantbot/internal/metrics"
	"plantbot/internal/models"
	"plantbot/internal/sensor"
)

// SnapshotSource источник телеметрии (один fetch за вызов)
type SnapshotSource interface {
	Fetch(ctx context.Context) (models.Snapshot, error)
}

// Detector классификатор снапшотов по identity token
type Detector interface {
	IsNew(token string) bool
	Advance(ctx context.Context, token string) error
}

// BucketStore персистентное хранилище дневных бакетов и подписчиков
type BucketStore interface {
	GetBucket(ctx context.Context, dayKey string) (*models.DayBucket, error)
	UpdateBucket(ctx context.Context, dayKey string, fold func(prev *models.DayBucket) models.DayBucket) (models.DayBucket, error)
	Subscribers(ctx context.Context) ([]string, error)
}

// Notifier доставка сообщений подписчикам
type Notifier interface {
	Broadcast(ctx context.Context, userIDs []string, text string) int
}

// Driver связывает fetch -> detect -> fold -> store и дневную сводку.
// Оба входа идемпотентны и безопасны при конкурентных вызовах.
type Driver struct {
	fetcher  SnapshotSource
	detector Detector
	store    BucketStore
	notifier Notifier

	realtimeRules []models.AlertRule
	dailyRules    []models.AlertRule
	loc           *time.Location
	now           func() time.Time

	mu       sync.Mutex
	dayLocks map[string]*sync.Mutex
	latest   *models.Snapshot
}

// NewDriver создает driver опроса
func NewDriver(fetcher SnapshotSource, detector Detector, store BucketStore, notifier Notifier, rules []models.AlertRule, loc *time.Location) *Driver {
	return &Driver{
		fetcher:       fetcher,
		detector:      detector,
		store:         store,
		notifier:      notifier,
		realtimeRules: alerting.FilterScope(rules, models.ScopeRealtime),
		dailyRules:    alerting.FilterScope(rules, models.ScopeDaily),
		loc:           loc,
		now:           time.Now,
		dayLocks:      make(map[string]*sync.Mutex),
	}
}

// PollOnce выполняет один цикл опроса. Любой сбой деградирует до
// "пропустить цикл": ошибка возвращается для лога, состояние не
// мутируется частично, токен двигается только после успешной записи.
func (d *Driver) PollOnce(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	snap, err := d.fetcher.Fetch(ctx)
	if err != nil {
		switch {
		case errors.Is(err, sensor.ErrMalformed):
			metrics.FetchesTotal.WithLabelValues("malformed").Inc()
		default:
			metrics.FetchesTotal.WithLabelValues("transport_error").Inc()
		}
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	metrics.FetchesTotal.WithLabelValues("success").Inc()

	d.mu.Lock()
	d.latest = &snap
	d.mu.Unlock()

	if !d.detector.IsNew(snap.ID) {
		metrics.SnapshotsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	metrics.SnapshotsTotal.WithLabelValues("new").Inc()

	dayKey := aggregate.DayKey(snap.CapturedAt, d.loc)

	// Fold-ы одного дня сериализуются: внутри процесса keyed mutex
	// гарантирует порядок классификации, в хранилище WATCH/CAS
	// защищает от чужого писателя.
	lock := d.dayLock(dayKey)
	lock.Lock()
	bucket, err := d.store.UpdateBucket(ctx, dayKey, func(prev *models.DayBucket) models.DayBucket {
		return aggregate.Fold(prev, dayKey, snap)
	})
	lock.Unlock()

	if err != nil {
		metrics.FoldsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("fold snapshot %s into %s: %w", snap.ID, dayKey, err)
	}
	metrics.FoldsTotal.WithLabelValues("success").Inc()
	metrics.DayBucketCount.Set(float64(bucket.Count))

	// Токен только после успешной записи бакета. Сбой здесь оставляет
	// прежний токен: следующий цикл повторит fold (at-least-once).
	if err := d.detector.Advance(ctx, snap.ID); err != nil {
		log.Warn().Err(err).Str("token", snap.ID).Msg("bucket committed but token not advanced, snapshot may be refolded")
	}

	log.Debug().Str("day", dayKey).Int("count", bucket.Count).Msg("snapshot folded")

	d.fireAlerts(ctx, snap, d.realtimeRules, models.ScopeRealtime)
	return nil
}

// DailySummary отправляет подписчикам сводку текущего дня и проверяет
// правила над агрегатом
func (d *Driver) DailySummary(ctx context.Context) error {
	text, bucket, err := d.summary(ctx)
	if err != nil {
		metrics.SummaryRuns.WithLabelValues("error").Inc()
		return err
	}

	subscribers, err := d.store.Subscribers(ctx)
	if err != nil {
		metrics.SummaryRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("list subscribers: %w", err)
	}

	delivered := d.notifier.Broadcast(ctx, subscribers, text)
	log.Info().Int("subscribers", len(subscribers)).Int("delivered", delivered).Msg("daily summary sent")

	if bucket != nil {
		d.fireAlerts(ctx, *bucket, d.dailyRules, models.ScopeDaily)
	}

	metrics.SummaryRuns.WithLabelValues("success").Inc()
	return nil
}

// Summary текст сводки текущего дня; используется и дневной джобой,
// и командой "Summary" в чате
func (d *Driver) Summary(ctx context.Context) (string, error) {
	text, _, err := d.summary(ctx)
	return text, err
}

// LatestSnapshot последний успешно полученный снапшот (и дубликаты тоже)
func (d *Driver) LatestSnapshot() (models.Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.latest == nil {
		return models.Snapshot{}, false
	}
	return *d.latest, true
}

// Stats статистика driver-а для /stats
func (d *Driver) Stats() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := map[string]interface{}{
		"realtime_rules": len(d.realtimeRules),
		"daily_rules":    len(d.dailyRules),
		"timezone":       d.loc.String(),
	}
	if d.latest != nil {
		stats["last_capture"] = d.latest.CapturedAt
		stats["last_token"] = d.latest.ID
	}
	return stats
}

// summary собирает текст сводки и возвращает бакет дня (nil если пусто)
func (d *Driver) summary(ctx context.Context) (string, *models.DayBucket, error) {
	dayKey := aggregate.DayKey(d.now(), d.loc)

	bucket, err := d.store.GetBucket(ctx, dayKey)
	if err != nil {
		return "", nil, fmt.Errorf("get bucket %s: %w", dayKey, err)
	}

	if bucket == nil {
		return fmt.Sprintf("No sensor data recorded today (%s).", dayKey), nil, nil
	}
	return formatSummary(*bucket), bucket, nil
}

// fireAlerts проверяет правила и рассылает сработавшие сообщения
func (d *Driver) fireAlerts(ctx context.Context, src alerting.MetricSource, rules []models.AlertRule, scope string) {
	alerts := alerting.Evaluate(src, rules)
	if len(alerts) == 0 {
		return
	}
	metrics.AlertsFired.WithLabelValues(scope).Add(float64(len(alerts)))

	subscribers, err := d.store.Subscribers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list subscribers for alerts")
		return
	}

	for _, alert := range alerts {
		d.notifier.Broadcast(ctx, subscribers, alert)
	}
}

// dayLock возвращает mutex дня, создавая его при первом обращении
func (d *Driver) dayLock(dayKey string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.dayLocks[dayKey]
	if !ok {
		lock = &sync.Mutex{}
		d.dayLocks[dayKey] = lock
	}
	return lock
}

// metricLabels человекочитаемые подписи метрик в сводке
var metricLabels = map[string]string{
	models.MetricTemperature:    "temperature",
	models.MetricHumidity:       "humidity",
	models.MetricAirQuality:     "air quality",
	models.MetricLightIntensity: "light",
	models.MetricSoilMoisture:   "soil moisture",
}

// formatSummary собирает текст дневной сводки из бакета
func formatSummary(bucket models.DayBucket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily summary (%s)\n", bucket.Date)
	fmt.Fprintf(&sb, "Snapshots: %d", bucket.Count)

	for _, name := range models.MetricNames {
		avg, ok := bucket.Averages[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n%s: avg %s, min %s, max %s",
			metricLabels[name],
			formatValue(avg),
			formatValue(bucket.MinValues[name]),
			formatValue(bucket.MaxValues[name]),
		)
	}

	return sb.String()
}

// formatValue минимальная форма числа: 15, не 15.00
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
