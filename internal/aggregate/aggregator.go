package aggregate

import (
	"math"
	"time"

	"plantbot/internal/models"
)

// DayKey возвращает ключ календарного дня для момента t в опорной
// таймзоне. Конвертация обязана происходить до любого обращения к
// хранилищу, иначе границы дня поплывут вместе с таймзоной хоста.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// Fold вливает один NEW снапшот в дневной бакет и возвращает новое
// значение бакета. prev == nil означает первый снапшот дня. Функция
// чистая: входной бакет не мутируется, день берется из dayKey и
// никогда не пересчитывается для уже начатого fold.
//
// Count считает обработанные снапшоты и растет на каждый вызов, даже
// если в снапшоте не оказалось ни одной метрики. Средние считаются по
// отдельным счетчикам Samples каждой метрики, поэтому пропуск метрики
// в очередном снапшоте не искажает ее знаменатель.
func Fold(prev *models.DayBucket, dayKey string, snap models.Snapshot) models.DayBucket {
	bucket := models.DayBucket{
		Date:      dayKey,
		Count:     1,
		UpdatedAt: snap.CapturedAt,
		Averages:  make(map[string]float64),
		MinValues: make(map[string]float64),
		MaxValues: make(map[string]float64),
		Sums:      make(map[string]float64),
		Samples:   make(map[string]int),
	}

	if prev != nil {
		bucket.Count = prev.Count + 1
		for k, v := range prev.Averages {
			bucket.Averages[k] = v
		}
		for k, v := range prev.MinValues {
			bucket.MinValues[k] = v
		}
		for k, v := range prev.MaxValues {
			bucket.MaxValues[k] = v
		}
		for k, v := range prev.Sums {
			bucket.Sums[k] = v
		}
		for k, v := range prev.Samples {
			bucket.Samples[k] = v
		}
	}

	for _, name := range models.MetricNames {
		value, ok := snap.Metric(name)
		if !ok {
			// Метрика отсутствует: прежние average/min/max переносятся как есть
			continue
		}

		n, seen := bucket.Samples[name]
		if !seen || n == 0 {
			bucket.Sums[name] = value
			bucket.Samples[name] = 1
			bucket.Averages[name] = round2(value)
			bucket.MinValues[name] = value
			bucket.MaxValues[name] = value
			continue
		}

		bucket.Sums[name] += value
		bucket.Samples[name] = n + 1
		bucket.Averages[name] = round2(bucket.Sums[name] / float64(n+1))

		if value < bucket.MinValues[name] {
			bucket.MinValues[name] = value
		}
		if value > bucket.MaxValues[name] {
			bucket.MaxValues[name] = value
		}
	}

	return bucket
}

// round2 округляет до фиксированной точности представления (2 знака)
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
