// Package history is the HTTP client for the durable chat history store.
// It satisfies contract.HistoryStore, so the client core runs unchanged
// against this or any in-process repository.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mikemainguy/video-conferencing-app/contract"
	"github.com/mikemainguy/video-conferencing-app/domain"
)

const requestTimeout = 10 * time.Second

var _ contract.HistoryStore = (*Client)(nil)

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

func (c *Client) messagesURL(room string) string {
	return fmt.Sprintf("%s/api/messages/%s", c.baseURL, url.PathEscape(room))
}

func (c *Client) Messages(ctx context.Context, room string) ([]domain.StoredMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.messagesURL(room), nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Messages []domain.StoredMessage `json:"messages"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (c *Client) Append(ctx context.Context, room string, msg domain.StoredMessage) (domain.StoredMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return domain.StoredMessage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(room), bytes.NewReader(payload))
	if err != nil {
		return domain.StoredMessage{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Success bool                 `json:"success"`
		Message domain.StoredMessage `json:"message"`
	}
	if err := c.do(req, &body); err != nil {
		return domain.StoredMessage{}, err
	}
	return body.Message, nil
}

func (c *Client) Clear(ctx context.Context, room string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.messagesURL(room), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("history store returned status %d for %s %s",
			resp.StatusCode, req.Method, req.URL.Path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
