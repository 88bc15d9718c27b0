package waha

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sendText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req sendTextRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "default", req.Session)
		assert.Equal(t, "5511999990001@c.us", req.ChatID)
		assert.Equal(t, "Oi! Sentimos sua falta.", req.Text)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SendResponse{ID: "msg-1", Timestamp: 1756500000, Ack: 1})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.SendText(context.Background(), "default", "+55 11 99999-0001", "Oi! Sentimos sua falta.")

	require.NoError(t, err)
	assert.Equal(t, "msg-1", got.ID)
	assert.Equal(t, 1, got.Ack)
}

func TestSendText_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"too many requests"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SendText(context.Background(), "default", "+5511999990001", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.RateLimited())
}

func TestSendText_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`gateway down`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SendText(context.Background(), "default", "+5511999990001", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.False(t, apiErr.RateLimited())
}

func TestSessionStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/default", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SessionInfo{Name: "default", Status: "WORKING"})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	info, err := client.SessionStatus(context.Background(), "default")

	require.NoError(t, err)
	assert.True(t, info.Connected())
}

func TestSessionStatus_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SessionStatus(context.Background(), "ghost")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestChatID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "5511999990001@c.us", chatID("+55 (11) 99999-0001"))
	assert.Equal(t, "123@c.us", chatID("123"))
}
