package backend

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

func setupBackend(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer operator-token" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/admin/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sessionId":"s1","userName":"Ali","lastActivity":"2024-06-01T10:00:00Z","status":"open"},
			{"sessionId":"","userName":"broken"},
			{"sessionId":"s2","userName":"Sara","lastActivity":1717236000000,"status":"closed"}
		]`))
	})
	r.Get("/messages/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "sessionID") {
		case "s1":
			_, _ = w.Write([]byte(`[{"userName":"Ali","text":"hi","time":"10:00"},{"userName":"Admin","text":"hello","time":"10:01"}]`))
		case "down":
			http.Error(w, "history store offline", http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL, token string) *Client {
	return NewClient(slog.New(slog.DiscardHandler), Options{BaseURL: baseURL + "/", Token: token})
}

func TestClient_FetchDirectory(t *testing.T) {
	req := require.New(t)
	srv := setupBackend(t)
	client := newTestClient(srv.URL, "operator-token")

	entries, err := client.FetchDirectory(context.Background())

	req.NoError(err)
	req.Equal([]chat.DirectoryEntry{
		{SessionID: "s1", UserName: "Ali", LastActivity: "2024-06-01T10:00:00Z", Status: "open"},
		{SessionID: "s2", UserName: "Sara", LastActivity: "1717236000000", Status: "closed"},
	}, entries)
}

func TestClient_FetchHistory(t *testing.T) {
	req := require.New(t)
	srv := setupBackend(t)
	client := newTestClient(srv.URL, "operator-token")

	messages, err := client.FetchHistory(context.Background(), "s1")

	req.NoError(err)
	req.Equal([]chat.Message{
		{Sender: "Ali", Text: "hi", SentAt: "10:00"},
		{Sender: "Admin", Text: "hello", SentAt: "10:01"},
	}, messages)
}

func TestClient_Errors(t *testing.T) {
	srv := setupBackend(t)

	tests := []struct {
		name      string
		token     string
		sessionID string
		status    bool
	}{
		{name: "bad gateway", token: "operator-token", sessionID: "down", status: true},
		{name: "unauthorized", token: "wrong", sessionID: "s1", status: true},
		{name: "malformed body", token: "operator-token", sessionID: "garbage", status: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(srv.URL, tt.token)
			_, err := client.FetchHistory(context.Background(), tt.sessionID)
			require.Error(t, err)
			if tt.status {
				require.ErrorIs(t, err, ErrUnexpectedStatus)
			} else {
				require.NotErrorIs(t, err, ErrUnexpectedStatus)
			}
		})
	}
}
