package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Jobs идемпотентные входы driver-а, которые дергает планировщик
type Jobs interface {
	PollOnce(ctx context.Context) error
	DailySummary(ctx context.Context) error
}

// Scheduler запускает цикл опроса на фиксированном интервале и дневную
// сводку в заданное локальное время опорной таймзоны
type Scheduler struct {
	jobs     Jobs
	interval time.Duration
	hour     int
	minute   int
	loc      *time.Location
	now      func() time.Time
}

// New создает планировщик
func New(jobs Jobs, interval time.Duration, hour, minute int, loc *time.Location) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		hour:     hour,
		minute:   minute,
		loc:      loc,
		now:      time.Now,
	}
}

// Run блокирует до отмены контекста, управляя обоими циклами
func (s *Scheduler) Run(ctx context.Context) {
	go s.runPolling(ctx)
	s.runDailySummary(ctx)
}

// runPolling цикл опроса сенсора. Сбой цикла логируется и не
// останавливает планировщик: сервис работает без присмотра.
func (s *Scheduler) runPolling(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("polling started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("polling stopped")
			return
		case <-ticker.C:
			if err := s.jobs.PollOnce(ctx); err != nil {
				log.Warn().Err(err).Msg("poll cycle skipped")
			}
		}
	}
}

// runDailySummary таймер перевзводится после каждого срабатывания,
// время следующего запуска всегда считается в опорной таймзоне
func (s *Scheduler) runDailySummary(ctx context.Context) {
	for {
		next := s.nextSummary(s.now())
		timer := time.NewTimer(next.Sub(s.now()))

		log.Info().Time("next_run", next).Msg("daily summary scheduled")

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("daily summary stopped")
			return
		case <-timer.C:
			if err := s.jobs.DailySummary(ctx); err != nil {
				log.Error().Err(err).Msg("daily summary failed")
			}
		}
	}
}

// nextSummary ближайший момент hour:minute в опорной таймзоне после now
func (s *Scheduler) nextSummary(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
