package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
)

const defaultTimeout = 10 * time.Second

// Client создаёт встречи через HTTP API сервиса видеосвязи
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// ClientOption настройка Client
type ClientOption func(*Client)

// WithTimeout таймаут HTTP клиента
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient подменяет HTTP клиент
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(endpoint, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRequest struct {
	Topic        string    `json:"topic"`
	StartTime    time.Time `json:"start_time"`
	Duration     int       `json:"duration"` // минуты
	Participants []string  `json:"participants,omitempty"`
}

type createResponse struct {
	JoinURL string `json:"join_url"`
	Error   string `json:"error,omitempty"`
}

// CreateMeetingLink создаёт встречу на окно и возвращает ссылку для входа
func (c *Client) CreateMeetingLink(ctx context.Context, title string, window availability.Window, participants []string) (string, error) {
	reqBytes, err := json.Marshal(createRequest{
		Topic:        title,
		StartTime:    window.Start.UTC(),
		Duration:     int(window.Duration().Minutes()),
		Participants: participants,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("meeting API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out createResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("meeting API error: %s", out.Error)
	}
	if out.JoinURL == "" {
		return "", fmt.Errorf("meeting API returned no join url")
	}

	return out.JoinURL, nil
}
