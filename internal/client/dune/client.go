package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/0xtaosu/meme-memos/internal/config"
	"github.com/0xtaosu/meme-memos/internal/models"
)

const (
	defaultBaseURL = "https://api.dune.com"
	defaultQueryID = 4139932
	paramTimeFmt   = "2006-01-02 15:04:05"
)

var ErrMissingAPIKey = errors.New("dune: api key is not configured")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dune API error (%d): %s", e.Status, e.Body)
}

// ExecutionError reports a query run that ended in a terminal non-success state.
type ExecutionError struct {
	ExecutionID string
	State       string
	Message     string
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dune execution %s %s: %s", e.ExecutionID, e.State, e.Message)
	}
	return fmt.Sprintf("dune execution %s %s", e.ExecutionID, e.State)
}

type Client struct {
	host         string
	apiKey       string
	queryID      int
	performance  string
	pollInterval time.Duration
	pageSize     int
	httpClient   *http.Client
}

func NewClient(httpClient *http.Client, cfg config.DuneConfig) *Client {
	host := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if host == "" {
		host = defaultBaseURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	queryID := cfg.QueryID
	if queryID <= 0 {
		queryID = defaultQueryID
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Client{
		host:         host,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		queryID:      queryID,
		performance:  strings.TrimSpace(cfg.Performance),
		pollInterval: poll,
		pageSize:     pageSize,
		httpClient:   httpClient,
	}
}

// Query runs the large-transaction query and yields rows page by page. Pages
// are fetched only as the caller keeps ranging.
func (c *Client) Query(ctx context.Context, q models.LargeTransactionQuery) iter.Seq2[models.LargeTransaction, error] {
	return func(yield func(models.LargeTransaction, error) bool) {
		var zero models.LargeTransaction
		executionID, err := c.Execute(ctx, q)
		if err != nil {
			yield(zero, err)
			return
		}
		if err := c.WaitForCompletion(ctx, executionID); err != nil {
			yield(zero, err)
			return
		}
		offset := 0
		for {
			page, err := c.ResultsPage(ctx, executionID, offset)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, row := range page.Rows {
				if !yield(row, nil) {
					return
				}
			}
			if page.NextOffset == nil || *page.NextOffset <= offset {
				return
			}
			offset = *page.NextOffset
		}
	}
}

// Execute starts a run of the configured query and returns its execution id.
func (c *Client) Execute(ctx context.Context, q models.LargeTransactionQuery) (string, error) {
	if strings.TrimSpace(q.TokenAddress) == "" {
		return "", fmt.Errorf("token address is required")
	}
	if q.End.Before(q.Start) {
		return "", fmt.Errorf("window end %s is before start %s", q.End, q.Start)
	}
	reqBody := executeRequest{
		QueryParameters: map[string]string{
			"START_TIME":     formatParamTime(q.Start),
			"END_TIME":       formatParamTime(q.End),
			"TOKEN_ADDRESS":  q.TokenAddress,
			"MIN_AMOUNT_USD": q.MinAmountUSD.String(),
		},
		Performance: c.performance,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/v1/query/%d/execute", c.queryID), nil, payload)
	if err != nil {
		return "", err
	}
	var resp executeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode execute response: %w", err)
	}
	if resp.ExecutionID == "" {
		return "", fmt.Errorf("dune: execute response has no execution_id")
	}
	return resp.ExecutionID, nil
}

// WaitForCompletion polls the execution until it completes or reaches a
// terminal failure state.
func (c *Client) WaitForCompletion(ctx context.Context, executionID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		status, err := c.Status(ctx, executionID)
		if err != nil {
			return err
		}
		switch status.State {
		case StateCompleted:
			return nil
		case StateFailed, StateCancelled, StateExpired:
			return &ExecutionError{ExecutionID: executionID, State: status.State, Message: status.Error.Message}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Status(ctx context.Context, executionID string) (*ExecutionStatus, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/execution/"+url.PathEscape(executionID)+"/status", nil, nil)
	if err != nil {
		return nil, err
	}
	var status ExecutionStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode execution status: %w", err)
	}
	return &status, nil
}

func (c *Client) ResultsPage(ctx context.Context, executionID string, offset int) (*ResultsPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageSize))
	query.Set("offset", strconv.Itoa(offset))
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/execution/"+url.PathEscape(executionID)+"/results", query, nil)
	if err != nil {
		return nil, err
	}
	return parseResultsPage(body)
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Dune-API-Key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func formatParamTime(t time.Time) string {
	return t.UTC().Format(paramTimeFmt)
}
