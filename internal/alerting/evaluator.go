package alerting

import (
	"fmt"
	"strconv"
	"strings"

	"plantbot/internal/models"
)

// MetricSource источник значений для проверки правил. Реализуется и
// сырым снапшотом, и дневным агрегатом — одна процедура сравнения на
// оба режима.
type MetricSource interface {
	Metric(name string) (float64, bool)
}

// placeholder в шаблоне сообщения заменяется измеренным значением
const placeholder = "{value}"

// Evaluate проверяет правила в порядке объявления и возвращает
// сработавшие сообщения. Отсутствующая метрика молча пропускается.
// Результат никогда не nil: отсутствие алертов — пустой срез.
func Evaluate(src MetricSource, rules []models.AlertRule) []string {
	alerts := make([]string, 0)

	for _, rule := range rules {
		value, ok := src.Metric(rule.Metric)
		if !ok {
			continue
		}

		if !compare(rule.Op, value, rule.Threshold) {
			continue
		}

		alerts = append(alerts, render(rule, value))
	}

	return alerts
}

// FilterScope выбирает правила заданной области. Правила без scope
// считаются realtime.
func FilterScope(rules []models.AlertRule, scope string) []models.AlertRule {
	out := make([]models.AlertRule, 0, len(rules))
	for _, rule := range rules {
		s := rule.Scope
		if s == "" {
			s = models.ScopeRealtime
		}
		if s == scope {
			out = append(out, rule)
		}
	}
	return out
}

// compare применяет оператор правила; неизвестный оператор не срабатывает
func compare(op string, value, threshold float64) bool {
	switch op {
	case "<":
		return value < threshold
	case ">":
		return value > threshold
	case "<=":
		return value <= threshold
	case ">=":
		return value >= threshold
	}
	return false
}

// render подставляет измеренное значение в шаблон сообщения
func render(rule models.AlertRule, value float64) string {
	v := strconv.FormatFloat(value, 'f', -1, 64)
	if strings.Contains(rule.Message, placeholder) {
		return strings.ReplaceAll(rule.Message, placeholder, v)
	}
	return fmt.Sprintf("%s (%s: %s)", rule.Message, rule.Metric, v)
}
