// Package remote implements an optional HTTP transport for executing tool
// commands on a remote execution host instead of the local machine. It
// satisfies the same ToolRunner contract the scheduler uses for local
// execution, so swapping transports requires no change to scheduler code.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scanforge/scanforge/internal/model"
	"github.com/scanforge/scanforge/internal/tools"
)

// DefaultTimeout is the request timeout applied to the underlying HTTP client.
const DefaultTimeout = 300 * time.Second

// Client executes tool commands against a remote execution host reachable
// over HTTP. It builds commands locally via the tool registry (so the same
// validation/injection checks apply regardless of transport) and ships only
// the resulting shell command to the remote host.
type Client struct {
	baseURL    string
	httpClient *http.Client
	registry   *tools.Registry
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client, e.g. for custom TLS.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries overrides the default retry count for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// New builds a Client targeting baseURL, executing commands built by registry.
func New(baseURL string, registry *tools.Registry, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		registry:   registry,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type commandRequest struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type commandResponse struct {
	Success    bool   `json:"success"`
	ReturnCode int    `json:"return_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimedOut   bool   `json:"timed_out"`
	Error      string `json:"error"`
}

// Run builds the command for toolName/params locally, then dispatches it to
// the remote host's /api/command endpoint, retrying on transport errors and
// 5xx responses with a short linear backoff.
func (c *Client) Run(ctx context.Context, toolName string, params map[string]any) (*model.Result, error) {
	adapter, ok := c.registry.Lookup(toolName)
	if !ok {
		return nil, model.NewToolNotFoundError(toolName)
	}

	command, cleanup, err := adapter.BuildCommand(params)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return &model.Result{Success: false, ReturnCode: -1, Stderr: err.Error()}, nil
	}

	body := commandRequest{
		Command:        command,
		TimeoutSeconds: int(adapter.Timeout().Seconds()),
	}

	resp, err := c.postWithRetry(ctx, "api/command", body)
	if err != nil {
		return nil, model.NewExecutionError(err.Error())
	}

	return &model.Result{
		Success:    resp.Success,
		ReturnCode: resp.ReturnCode,
		Stdout:     resp.Stdout,
		Stderr:     resp.Stderr,
		TimedOut:   resp.TimedOut,
	}, nil
}

// CheckHealth reports whether the remote execution host is reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	u, err := c.buildURL("health")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("remote host unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postWithRetry(ctx context.Context, endpoint string, body commandRequest) (*commandResponse, error) {
	u, err := c.buildURL(endpoint)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				time.Sleep(backoff(attempt))
				continue
			}
			return nil, lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("remote host returned HTTP %d: %s", resp.StatusCode, string(respBody))
			if attempt < c.maxRetries {
				time.Sleep(backoff(attempt))
				continue
			}
			return nil, lastErr
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("remote host rejected request: HTTP %d: %s", resp.StatusCode, string(respBody))
		}

		var out commandResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("unmarshaling response: %w", err)
		}
		return &out, nil
	}

	return nil, lastErr
}

func (c *Client) buildURL(endpoint string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 250 * time.Millisecond
}
