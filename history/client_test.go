package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikemainguy/video-conferencing-app/domain"
)

func Test_Messages_Fetches_Room_History(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodGet, r.Method)
		req.Equal("/api/messages/demo", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []domain.StoredMessage{
				{Sender: "Alice", Message: "hello", Timestamp: 1000, Color: "#228be6"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, slog.Default())
	messages, err := client.Messages(context.Background(), "demo")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("Alice", messages[0].Sender)
	req.Equal(int64(1000), messages[0].Timestamp)
}

func Test_Append_Posts_And_Returns_Stored_Message(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/api/messages/demo", r.URL.Path)
		req.Equal("application/json", r.Header.Get("Content-Type"))

		var msg domain.StoredMessage
		req.NoError(json.NewDecoder(r.Body).Decode(&msg))
		req.Equal("Alice", msg.Sender)

		// The store assigns a timestamp when the client sends none.
		msg.Timestamp = 1000
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": msg})
	}))
	defer server.Close()

	client := NewClient(server.URL, slog.Default())
	stored, err := client.Append(context.Background(), "demo",
		domain.StoredMessage{Sender: "Alice", Message: "hello"})
	req.NoError(err)
	req.Equal(int64(1000), stored.Timestamp)
	req.Equal("hello", stored.Message)
}

func Test_Clear_Issues_Delete(t *testing.T) {
	req := require.New(t)
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Chat history cleared"})
	}))
	defer server.Close()

	client := NewClient(server.URL, slog.Default())
	req.NoError(client.Clear(context.Background(), "demo"))
	req.Equal(http.MethodDelete, method)
	req.Equal("/api/messages/demo", path)
}

func Test_Room_Names_Are_Path_Escaped(t *testing.T) {
	req := require.New(t)
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []domain.StoredMessage{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, slog.Default())
	_, err := client.Messages(context.Background(), "team room/1")
	req.NoError(err)
	req.Equal("/api/messages/team%20room%2F1", path)
}

func Test_Non_2xx_Status_Is_An_Error(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, slog.Default())
	_, err := client.Messages(context.Background(), "demo")
	req.Error(err)
	req.Error(client.Clear(context.Background(), "demo"))
}
