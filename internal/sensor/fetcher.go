package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"plantbot/internal/models"
)

// Классы отказов fetch-а; вызывающий код ветвится по errors.Is
var (
	ErrTransport = errors.New("sensor: transport failure")
	ErrMalformed = errors.New("sensor: malformed payload")
)

// Fetcher получает один снапшот телеметрии по HTTP.
// Не ретраит и не циклится: retry/backoff живут в планировщике.
type Fetcher struct {
	url    string
	client *http.Client
	loc    *time.Location
	now    func() time.Time
}

// NewFetcher создает fetcher с ограничением времени запроса
func NewFetcher(url string, timeout time.Duration, loc *time.Location) *Fetcher {
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		loc:    loc,
		now:    time.Now,
	}
}

// payload сырое тело ответа сенсорного endpoint-а.
// Числовые поля опциональны: их отсутствие — валидный вход.
type payload struct {
	ID             string   `json:"id"`
	Temperature    *float64 `json:"temperature"`
	Humidity       *float64 `json:"humidity"`
	AirQuality     *float64 `json:"airQuality_val"`
	LightIntensity *float64 `json:"lightIntensity_val"`
	SoilMoisture   *float64 `json:"soilMoisture"`
}

// Fetch выполняет один сетевой запрос и штампует снапшот временем
// снятия в опорной таймзоне. Любой сбой транспорта или декодирования
// возвращается типизированной ошибкой, состояние не мутируется.
func (f *Fetcher) Fetch(ctx context.Context) (models.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Snapshot{}, fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return models.Snapshot{
		ID:             p.ID,
		CapturedAt:     f.now().In(f.loc),
		Temperature:    p.Temperature,
		Humidity:       p.Humidity,
		AirQuality:     p.AirQuality,
		LightIntensity: p.LightIntensity,
		SoilMoisture:   p.SoilMoisture,
	}, nil
}
