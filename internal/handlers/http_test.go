package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"plantbot/internal/models"
)

func f(v float64) *float64 { return &v }

type fakeDriver struct {
	summary    string
	summaryErr error
	latest     *models.Snapshot
}

func (d *fakeDriver) Summary(ctx context.Context) (string, error) { return d.summary, d.summaryErr }

func (d *fakeDriver) LatestSnapshot() (models.Snapshot, bool) {
	if d.latest == nil {
		return models.Snapshot{}, false
	}
	return *d.latest, true
}

func (d *fakeDriver) Stats() map[string]interface{} { return map[string]interface{}{} }

type fakeRegistry struct {
	added   []string
	pingErr error
}

func (r *fakeRegistry) AddSubscriber(ctx context.Context, userID string) (bool, error) {
	r.added = append(r.added, userID)
	return true, nil
}

func (r *fakeRegistry) Ping(ctx context.Context) error { return r.pingErr }

func (r *fakeRegistry) Stats() map[string]interface{} { return map[string]interface{}{} }

type fakeReplier struct {
	replies map[string]string
}

func (r *fakeReplier) Reply(ctx context.Context, replyToken, text string) error {
	if r.replies == nil {
		r.replies = make(map[string]string)
	}
	r.replies[replyToken] = text
	return nil
}

func callbackRequest(text string) *http.Request {
	body := `{"events":[{"type":"message","replyToken":"rt1","source":{"userId":"u1"},"message":{"type":"text","text":"` + text + `"}}]}`
	return httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
}

func TestCallbackRegistersSubscriber(t *testing.T) {
	registry := &fakeRegistry{}
	h := NewHandler(&fakeDriver{}, registry, &fakeReplier{})

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("hello"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"u1"}, registry.added)
}

func TestCallbackSummaryCommand(t *testing.T) {
	replier := &fakeReplier{}
	h := NewHandler(&fakeDriver{summary: "Daily summary (2024-01-01)\nSnapshots: 3"}, &fakeRegistry{}, replier)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("Summary"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, replier.replies["rt1"], "Daily summary (2024-01-01)")
}

func TestCallbackSummaryUnavailable(t *testing.T) {
	replier := &fakeReplier{}
	h := NewHandler(&fakeDriver{summaryErr: errors.New("redis down")}, &fakeRegistry{}, replier)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("Summary"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, replier.replies["rt1"], "unavailable")
}

func TestCallbackEnvironmentCommand(t *testing.T) {
	replier := &fakeReplier{}
	driver := &fakeDriver{latest: &models.Snapshot{Temperature: f(24.5), Humidity: f(61)}}
	h := NewHandler(driver, &fakeRegistry{}, replier)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("Environment"))

	reply := replier.replies["rt1"]
	require.Contains(t, reply, "Temperature: 24.5°C")
	require.Contains(t, reply, "Humidity: 61%")
}

func TestCallbackEnvironmentNoData(t *testing.T) {
	replier := &fakeReplier{}
	h := NewHandler(&fakeDriver{}, &fakeRegistry{}, replier)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("Environment"))

	require.Contains(t, replier.replies["rt1"], "No sensor readings yet")
}

func TestCallbackUnknownCommandNoReply(t *testing.T) {
	replier := &fakeReplier{}
	h := NewHandler(&fakeDriver{}, &fakeRegistry{}, replier)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("how are you"))

	require.Empty(t, replier.replies)
}

func TestCallbackMethodNotAllowed(t *testing.T) {
	h := NewHandler(&fakeDriver{}, &fakeRegistry{}, &fakeReplier{})

	w := httptest.NewRecorder()
	h.Callback(w, httptest.NewRequest(http.MethodGet, "/callback", nil))

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler(&fakeDriver{}, &fakeRegistry{}, &fakeReplier{})

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	degraded := NewHandler(&fakeDriver{}, &fakeRegistry{pingErr: errors.New("down")}, &fakeReplier{})
	w = httptest.NewRecorder()
	degraded.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
