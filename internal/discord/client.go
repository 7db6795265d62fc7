package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"
	defaultTimeout = 10 * time.Second

	maxResponseBytes int64 = 1 << 20
)

// HTTPDoer is satisfied by *http.Client and by test fakes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts messages to Discord channels through the bot REST API.
// Bot tokens are supplied per call because each channel binding carries
// its own token.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// NewClientWithDoer wires a custom transport, used by tests.
func NewClientWithDoer(doer HTTPDoer, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: doer, baseURL: baseURL}
}

// Message is the channel message create payload. At least one of
// Content or Embeds must be set.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type messageResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendMessage posts a message to the channel and returns the created
// message ID.
func (c *Client) SendMessage(ctx context.Context, channelID, botToken string, msg Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+botToken)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send channel message: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(resBody, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("discord api status %d: %s", res.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("discord api status %d", res.StatusCode)
	}

	var created messageResponse
	if err := json.Unmarshal(resBody, &created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.ID, nil
}
