package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"plantbot/internal/metrics"
)

// Client клиент LINE Messaging API: push и reply текстовых сообщений.
// baseURL конфигурируем, чтобы тесты ходили в httptest сервер.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient создает notifier с bearer токеном канала
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   accessToken,
		http:    &http.Client{Timeout: timeout},
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Push отправляет одно текстовое сообщение пользователю
func (c *Client) Push(ctx context.Context, userID, text string) error {
	body := pushRequest{
		To:       userID,
		Messages: []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/v2/bot/message/push", body)
}

// Reply отвечает на входящее сообщение по reply токену
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	body := replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/v2/bot/message/reply", body)
}

// Broadcast доставляет сообщение каждому подписчику. Сбой доставки
// одному пользователю логируется и не блокирует остальных; возвращает
// число успешных доставок.
func (c *Client) Broadcast(ctx context.Context, userIDs []string, text string) int {
	delivered := 0

	for _, userID := range userIDs {
		if err := c.Push(ctx, userID, text); err != nil {
			metrics.NotificationsSent.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("user_id", userID).Msg("failed to push message")
			continue
		}
		metrics.NotificationsSent.WithLabelValues("success").Inc()
		delivered++
	}

	return delivered
}

// post выполняет JSON POST к messaging API
func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("messaging api status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
