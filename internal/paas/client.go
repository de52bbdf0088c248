package paas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/0xtaosu/meme-memos/internal/config"
)

const defaultAgent = "meme-memos-service"

// Client writes audit and failure records to the platform log API.
type Client struct {
	BaseURL string
	APIKey  string
	Agent   string
	HTTP    *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// New returns nil when the sink is not configured; a nil *Client is a valid no-op.
func New(cfg config.PaaSConfig) *Client {
	if strings.TrimSpace(cfg.APIBase) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	agent := strings.TrimSpace(cfg.Agent)
	if agent == "" {
		agent = defaultAgent
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Agent:   agent,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type CreateLogRequest struct {
	Agent      string         `json:"agent"`
	Action     string         `json:"action"`
	Level      string         `json:"level"`
	Details    map[string]any `json:"details"`
	SessionKey string         `json:"session_key"`
	Metadata   map[string]any `json:"metadata"`
}

func (c *Client) Login(ctx context.Context) error {
	if c.BaseURL == "" {
		return errors.New("paas base url is empty")
	}
	if c.APIKey == "" {
		return errors.New("paas api key is empty")
	}
	b, err := c.post(ctx, "/api/v1/auth/login", map[string]any{"api_key": c.APIKey}, "")
	if err != nil {
		return fmt.Errorf("paas login: %w", err)
	}
	var lr loginResponse
	if err := json.Unmarshal(b, &lr); err != nil {
		return err
	}
	exp, _ := time.Parse(time.RFC3339, strings.TrimSpace(lr.ExpiresAt))

	c.mu.Lock()
	c.token = strings.TrimSpace(lr.Token)
	c.expiresAt = exp
	c.mu.Unlock()
	return nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	tok, exp := c.token, c.expiresAt
	c.mu.RUnlock()
	if tok != "" && (exp.IsZero() || time.Until(exp) >= 2*time.Minute) {
		return tok, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, nil
}

func (c *Client) CreateLog(ctx context.Context, req CreateLogRequest) error {
	if c == nil {
		return nil
	}
	tok, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	if req.Agent == "" {
		req.Agent = c.Agent
	}
	if req.Details == nil {
		req.Details = map[string]any{}
	}
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}
	if _, err := c.post(ctx, "/api/v1/logs", req, tok); err != nil {
		return fmt.Errorf("paas create log: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, token string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}
