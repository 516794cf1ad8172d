package models

import "time"

// Имена метрик, приходящих от сенсорного модуля
const (
	MetricTemperature    = "temperature"
	MetricHumidity       = "humidity"
	MetricAirQuality     = "airQuality_val"
	MetricLightIntensity = "lightIntensity_val"
	MetricSoilMoisture   = "soilMoisture"
)

// MetricNames порядок метрик для детерминированного обхода
var MetricNames = []string{
	MetricTemperature,
	MetricHumidity,
	MetricAirQuality,
	MetricLightIntensity,
	MetricSoilMoisture,
}

// Snapshot одно показание сенсоров с идентификатором и временем снятия.
// Отсутствующие поля остаются nil — это валидный вход, не ошибка.
type Snapshot struct {
	ID             string    `json:"id"`
	CapturedAt     time.Time `json:"captured_at"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	AirQuality     *float64  `json:"airQuality_val,omitempty"`
	LightIntensity *float64  `json:"lightIntensity_val,omitempty"`
	SoilMoisture   *float64  `json:"soilMoisture,omitempty"`
}

// Metric возвращает значение метрики по имени, ok=false если метрика отсутствует
func (s Snapshot) Metric(name string) (float64, bool) {
	var p *float64
	switch name {
	case MetricTemperature:
		p = s.Temperature
	case MetricHumidity:
		p = s.Humidity
	case MetricAirQuality:
		p = s.AirQuality
	case MetricLightIntensity:
		p = s.LightIntensity
	case MetricSoilMoisture:
		p = s.SoilMoisture
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// DayBucket агрегат за один календарный день в опорной таймзоне.
// Averages округлены до 2 знаков; Sums/Samples хранят точное
// состояние накопления, чтобы рестарт не вносил дрейф.
type DayBucket struct {
	Date      string             `json:"date"`
	Count     int                `json:"count"`
	UpdatedAt time.Time          `json:"updated_at"`
	Averages  map[string]float64 `json:"averages"`
	MinValues map[string]float64 `json:"min_values"`
	MaxValues map[string]float64 `json:"max_values"`
	Sums      map[string]float64 `json:"sums"`
	Samples   map[string]int     `json:"samples"`
}

// Metric возвращает среднее за день по имени метрики
func (b DayBucket) Metric(name string) (float64, bool) {
	v, ok := b.Averages[name]
	return v, ok
}

// AlertRule правило сравнения: metric op threshold -> message.
// Scope определяет, к чему применяется правило: сырому снапшоту
// или дневному агрегату.
type AlertRule struct {
	Metric    string  `mapstructure:"metric" json:"metric"`
	Op        string  `mapstructure:"op" json:"op"`
	Threshold float64 `mapstructure:"threshold" json:"threshold"`
	Message   string  `mapstructure:"message" json:"message"`
	Scope     string  `mapstructure:"scope" json:"scope"`
}

// Области применения правил
const (
	ScopeRealtime = "realtime"
	ScopeDaily    = "daily"
)

// WebhookRequest тело webhook запроса от messaging платформы
type WebhookRequest struct {
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent одно событие webhook
type WebhookEvent struct {
	Type       string         `json:"type"`
	ReplyToken string         `json:"replyToken"`
	Source     WebhookSource  `json:"source"`
	Message    WebhookMessage `json:"message"`
}

// WebhookSource отправитель события
type WebhookSource struct {
	UserID string `json:"userId"`
}

// WebhookMessage текст входящего сообщения
type WebhookMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
