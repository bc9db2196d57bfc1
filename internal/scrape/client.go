package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/observability"
)

const (
	startPath   = "/api/scrape/start"
	statusPath  = "/api/scrape/status"
	resultsPath = "/api/scrape/results"

	maxResponseBytes = 32 << 20
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client talks to the external scrape backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Start launches a scrape job for the given date range. Only success or
// failure of the call matters; the body is discarded.
func (c *Client) Start(ctx context.Context, r DateRange) error {
	body, err := json.Marshal(r.Request())
	if err != nil {
		return fmt.Errorf("encode start request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, startPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	c.logger.Debug("scrape job started", "range", r.String())
	return nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, statusPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Results fetches the scraped orders. Elements that fail validation are
// dropped; the call only fails when the payload as a whole is unusable.
func (c *Client) Results(ctx context.Context) ([]models.Order, error) {
	resp, err := c.do(ctx, http.MethodGet, resultsPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	orders := make([]models.Order, 0, len(raw))
	dropped := 0
	for i, item := range raw {
		var o models.Order
		if err := json.Unmarshal(item, &o); err != nil {
			c.logger.Warn("dropping malformed order", "index", i, "error", err)
			dropped++
			continue
		}
		if err := o.Validate(); err != nil {
			c.logger.Warn("dropping invalid order", "index", i, "id", o.ID, "error", err)
			dropped++
			continue
		}
		orders = append(orders, o)
	}

	c.logger.Info("scrape results fetched", "orders", len(orders), "dropped", dropped)
	return orders, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := observability.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	if span := observability.GetSpan(ctx); span != nil {
		req.Header.Set("X-Trace-ID", span.TraceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %w %d: %s", method, path, ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}
