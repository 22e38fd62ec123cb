package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/config"
	"github.com/yeleman/anam-desktop/internal/domain"
)

const (
	apiPrefix     = "/api"
	statusSuccess = "success"
)

// envelope fields shared by every dataset service response
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client dataset service (anam-receiver) API client
type Client struct {
	httpClient   *resty.Client
	baseURL      string
	probeTimeout time.Duration
	logger       *zap.Logger
}

// NewClient creates a dataset service client
func NewClient(cfg *config.StoreConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.URL+apiPrefix).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Authorization", "Token "+cfg.Token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient:   client,
		baseURL:      cfg.URL,
		probeTimeout: cfg.ProbeTimeout,
		logger:       logger,
	}
}

// Check reports whether the service answers with a valid envelope
func (c *Client) Check(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/check", nil, nil)
}

// List returns every collect known to the service
func (c *Client) List(ctx context.Context) ([]Collect, error) {
	var result struct {
		Collects []Collect `json:"collects"`
	}
	if err := c.do(ctx, http.MethodGet, "/collects", nil, &result); err != nil {
		return nil, err
	}
	return result.Collects, nil
}

// Get returns a collect with its dataset
func (c *Client) Get(ctx context.Context, collectID string) (*Collect, error) {
	var result struct {
		Collect *Collect `json:"collect"`
	}
	if err := c.do(ctx, http.MethodGet, "/collects/"+url.PathEscape(collectID), nil, &result); err != nil {
		return nil, err
	}
	if result.Collect == nil {
		return nil, fmt.Errorf("collect %s: empty response", collectID)
	}
	return result.Collect, nil
}

// MarkImported sends the identifiers created for a collect
func (c *Client) MarkImported(ctx context.Context, collectID string, ids domain.IdentifierMap) error {
	if ids == nil {
		ids = domain.IdentifierMap{}
	}
	err := c.do(ctx, http.MethodPost, "/collects/"+url.PathEscape(collectID)+"/mark_imported", ids, nil)
	if err != nil {
		return &domain.NotificationError{CollectID: collectID, Err: err}
	}
	return nil
}

// Archive hides a collect from the default listing
func (c *Client) Archive(ctx context.Context, collectID string) error {
	return c.do(ctx, http.MethodPost, "/collects/"+url.PathEscape(collectID)+"/archive", nil, nil)
}

// Unarchive restores an archived collect
func (c *Client) Unarchive(ctx context.Context, collectID string) error {
	return c.do(ctx, http.MethodPost, "/collects/"+url.PathEscape(collectID)+"/unarchive", nil, nil)
}

// Probe checks the service host accepts TCP connections
func (c *Client) Probe(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Hostname() == "" {
		return &domain.ConnectionError{Target: c.baseURL, Err: fmt.Errorf("invalid URL %q", c.baseURL)}
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	dialer := net.Dialer{Timeout: c.probeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &domain.ConnectionError{Target: addr, Err: err}
	}
	return conn.Close()
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if err := c.Probe(ctx); err != nil {
		c.logger.Info("Dataset service unreachable",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return err
	}

	req := c.httpClient.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Error("Dataset service call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("failed to call dataset service %s %s: %w", method, path, err)
	}

	if code := resp.StatusCode(); code != http.StatusOK && code != http.StatusCreated {
		c.logger.Error("Dataset service returned error",
			zap.String("path", path),
			zap.Int("status_code", code),
			zap.String("body", truncateBody(resp.Body())))
		return fmt.Errorf("dataset service %s %s: HTTP %d", method, path, code)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("failed to decode dataset service response: %w", err)
	}
	if env.Status != statusSuccess {
		c.logger.Error("Dataset service rejected request",
			zap.String("path", path),
			zap.String("status", env.Status),
			zap.String("message", env.Message))
		return fmt.Errorf("dataset service %s %s: status %q %s", method, path, env.Status, env.Message)
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body(), result); err != nil {
			return fmt.Errorf("failed to decode dataset service response: %w", err)
		}
	}
	return nil
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit])
	}
	return string(b)
}
