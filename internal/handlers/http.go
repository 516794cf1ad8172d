package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"plantbot/internal/metrics"
	"plantbot/internal/models"
)

// Summarizer доступ к состоянию driver-а опроса
type Summarizer interface {
	Summary(ctx context.Context) (string, error)
	LatestSnapshot() (models.Snapshot, bool)
	Stats() map[string]interface{}
}

// Registry реестр подписчиков и здоровье хранилища
type Registry interface {
	AddSubscriber(ctx context.Context, userID string) (bool, error)
	Ping(ctx context.Context) error
	Stats() map[string]interface{}
}

// Replier ответ на входящее сообщение по reply токену
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Handler обработчик HTTP запросов
type Handler struct {
	driver   Summarizer
	registry Registry
	replier  Replier
}

// NewHandler создает новый обработчик
func NewHandler(driver Summarizer, registry Registry, replier Replier) *Handler {
	return &Handler{
		driver:   driver,
		registry: registry,
		replier:  replier,
	}
}

// Callback обрабатывает POST /callback — webhook messaging платформы.
// Подпись канала не проверяется: аутентификация чат-канала вне зоны
// ответственности сервиса.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.RequestDuration.WithLabelValues(r.Method, "/callback").Observe(duration)
	}()

	if r.Method != http.MethodPost {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/callback", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/callback", "400").Inc()
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	for _, event := range req.Events {
		if event.Type != "message" || event.Message.Type != "text" {
			continue
		}
		h.handleTextMessage(r.Context(), event)
	}

	metrics.RequestsTotal.WithLabelValues(r.Method, "/callback", "200").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleTextMessage регистрирует пользователя и отвечает на команды
func (h *Handler) handleTextMessage(ctx context.Context, event models.WebhookEvent) {
	if event.Source.UserID != "" {
		added, err := h.registry.AddSubscriber(ctx, event.Source.UserID)
		if err != nil {
			metrics.RedisOperations.WithLabelValues("add_subscriber", "error").Inc()
			log.Error().Err(err).Str("user_id", event.Source.UserID).Msg("failed to register subscriber")
		} else {
			metrics.RedisOperations.WithLabelValues("add_subscriber", "success").Inc()
			if added {
				metrics.SubscribersRegistered.Inc()
				log.Info().Str("user_id", event.Source.UserID).Msg("subscriber registered")
			}
		}
	}

	reply := h.commandReply(ctx, event.Message.Text)
	if reply == "" {
		return
	}

	if err := h.replier.Reply(ctx, event.ReplyToken, reply); err != nil {
		log.Error().Err(err).Msg("failed to reply")
	}
}

// commandReply текст ответа на команду; "" если команда не распознана
func (h *Handler) commandReply(ctx context.Context, text string) string {
	switch {
	case strings.HasPrefix(text, "Summary"):
		summary, err := h.driver.Summary(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to build summary")
			return "Summary is unavailable right now, please try again later."
		}
		return summary

	case strings.HasPrefix(text, "Environment"):
		snap, ok := h.driver.LatestSnapshot()
		if !ok {
			return "No sensor readings yet, check back in a minute."
		}
		return environmentReply(snap)
	}
	return ""
}

// environmentReply одна строка про текущую обстановку в комнате
func environmentReply(snap models.Snapshot) string {
	parts := make([]string, 0, 2)
	if v, ok := snap.Metric(models.MetricTemperature); ok {
		parts = append(parts, "Temperature: "+strconv.FormatFloat(v, 'f', -1, 64)+"°C")
	}
	if v, ok := snap.Metric(models.MetricHumidity); ok {
		parts = append(parts, "Humidity: "+strconv.FormatFloat(v, 'f', -1, 64)+"%")
	}
	if len(parts) == 0 {
		return "No sensor readings yet, check back in a minute."
	}
	return "Here's an update on your room's environment: " + strings.Join(parts, " | ") + ". Keep the plant happy!"
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	redisOK := h.registry.Ping(r.Context()) == nil

	status := "healthy"
	httpStatus := http.StatusOK

	if !redisOK {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"redis":     redisOK,
		"timestamp": time.Now(),
	})
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.RequestDuration.WithLabelValues(r.Method, "/stats").Observe(duration)
	}()

	metrics.RequestsTotal.WithLabelValues(r.Method, "/stats", "200").Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"pipeline":  h.driver.Stats(),
		"redis":     h.registry.Stats(),
		"timestamp": time.Now(),
	})
}
