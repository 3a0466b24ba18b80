// Package httpclient provides basic http fetch functions with retries
package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config controls retry behavior for outbound fetches.
// Failed attempts are retried with exponential backoff: the first retry waits
// BackoffFactor seconds, the next twice that, and so on.
type Config struct {
	Timeout       time.Duration
	MaxRetries    int
	BackoffFactor int
}

// DefaultConfig matches the ingestion scripts: 5 attempts, factor 2 backoff,
// 10 second request timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		MaxRetries:    5,
		BackoffFactor: 2,
	}
}

// GetBytes performs a GET request against url with the provided headers and
// returns the response body. Non-2xx responses and transport errors are
// retried per cfg before giving up.
func GetBytes(url string, headers map[string]string, cfg Config) ([]byte, error) {
	client := http.Client{Timeout: cfg.Timeout}
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			backoff := cfg.BackoffFactor
			for i := 2; i < attempt; i++ {
				backoff *= cfg.BackoffFactor
			}
			time.Sleep(time.Duration(backoff) * time.Second)
		}
		body, err := getOnce(&client, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", cfg.MaxRetries, lastErr)
}

func getOnce(client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	return io.ReadAll(resp.Body)
}

// GetJSON performs a retried GET request against url and unmarshals the JSON
// response body into target.
func GetJSON(url string, cfg Config, target interface{}) error {
	body, err := GetBytes(url, nil, cfg)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("unable to parse response from %s: %w", url, err)
	}
	return nil
}
