package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushSendsBearerAndBody(t *testing.T) {
	var gotAuth string
	var gotBody pushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/bot/message/push", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token", time.Second)
	require.NoError(t, c.Push(context.Background(), "u1", "hello"))

	require.Equal(t, "Bearer secret-token", gotAuth)
	require.Equal(t, "u1", gotBody.To)
	require.Len(t, gotBody.Messages, 1)
	require.Equal(t, "text", gotBody.Messages[0].Type)
	require.Equal(t, "hello", gotBody.Messages[0].Text)
}

func TestPushErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", time.Second)
	err := c.Push(context.Background(), "u1", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	// Сбой доставки одному пользователю не блокирует остальных
	var mu sync.Mutex
	delivered := make([]string, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req pushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.To == "u2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mu.Lock()
		delivered = append(delivered, req.To)
		mu.Unlock()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", time.Second)
	count := c.Broadcast(context.Background(), []string{"u1", "u2", "u3"}, "summary")

	require.Equal(t, 2, count)
	require.Equal(t, []string{"u1", "u3"}, delivered)
}

func TestReplyUsesReplyEndpoint(t *testing.T) {
	var gotBody replyRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", time.Second)
	require.NoError(t, c.Reply(context.Background(), "rt1", "pong"))
	require.Equal(t, "rt1", gotBody.ReplyToken)
}
