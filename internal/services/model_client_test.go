package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func reply(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
}

func TestModelClientComplete(t *testing.T) {
	var gotAuth string
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req modelChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		reply(w, "hello from the model")
	})

	c := NewModelClient(srv.URL, "test-model", []string{"key-a"}, 5*time.Second)
	out, err := c.Complete(context.Background(), []ModelMessage{
		{Role: "system", Content: "you are a test"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "hello from the model", out)
	require.Equal(t, "Bearer key-a", gotAuth)
}

func TestModelClientRotatesKeys(t *testing.T) {
	var mu sync.Mutex
	seen := []string{}
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		mu.Unlock()
		reply(w, "ok")
	})

	c := NewModelClient(srv.URL, "m", []string{"key-a", "key-b"}, 5*time.Second)
	for i := 0; i < 4; i++ {
		_, err := c.Complete(context.Background(), []ModelMessage{{Role: "user", Content: "hi"}})
		require.NoError(t, err)
	}

	require.Equal(t, []string{"key-a", "key-b", "key-a", "key-b"}, seen)
}

func TestModelClientRetriesOnRateLimit(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		reply(w, "recovered")
	})

	c := NewModelClient(srv.URL, "m", []string{"key-a", "key-b"}, 5*time.Second)
	out, err := c.Complete(context.Background(), []ModelMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "recovered", out)
	require.Equal(t, 2, calls)
}

func TestModelClientNoKeys(t *testing.T) {
	c := NewModelClient("http://unused", "m", nil, time.Second)
	_, err := c.Complete(context.Background(), []ModelMessage{{Role: "user", Content: "hi"}})
	require.ErrorIs(t, err, ErrNoAPIKeys)
}

func TestModelClientServerError(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := NewModelClient(srv.URL, "m", []string{"key-a", "key-b"}, 5*time.Second)
	_, err := c.Complete(context.Background(), []ModelMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}
