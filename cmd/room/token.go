package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const tokenRequestTimeout = 10 * time.Second

// fetchToken asks the server for a room join token, authenticating with
// basic credentials when configured.
func fetchToken(ctx context.Context, config Config) (string, error) {
	body, err := json.Marshal(map[string]string{
		"identity": config.Identity,
		"room":     config.Room,
		"name":     config.Name,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, tokenRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		config.ServerURL+"/api/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if config.Username != "" {
		req.SetBasicAuth(config.Username, config.Password)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("token response was empty")
	}
	return out.Token, nil
}
