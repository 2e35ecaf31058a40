// Package imagegen talks to the hosted image generation task API: a task is
// created, then polled until it succeeds or fails.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	createTaskPath = "/api/v1/jobs/createTask"
	recordInfoPath = "/api/v1/jobs/recordInfo"

	// DefaultModel edits an input image following a prompt.
	DefaultModel = "google/nano-banana-edit"

	maxDownloadSize = 20 << 20
	maxMessageBytes = 512
)

var (
	ErrNotConfigured = errors.New("image generation not configured")
	ErrTaskFailed    = errors.New("generation task failed")
	ErrTaskTimeout   = errors.New("generation task timed out")
)

// Config configures the client.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client creates and polls generation tasks.
type Client struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
}

// Request describes one generation.
type Request struct {
	Model        string
	Prompt       string
	InputURLs    []string
	OutputFormat string
}

// NewClient creates an image generation client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate runs a task to completion and returns the first result URL.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	taskID, err := c.createTask(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	log.Info().Str("task_id", taskID).Str("model", req.Model).Msg("generation task created")

	return c.waitForResult(ctx, taskID)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) createTask(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	format := strings.ToLower(req.OutputFormat)
	if format == "" {
		format = "png"
	}

	input := map[string]any{
		"prompt":        req.Prompt,
		"output_format": format,
	}
	if len(req.InputURLs) > 0 {
		input["image_urls"] = req.InputURLs
	}

	body, err := json.Marshal(map[string]any{"model": model, "input": input})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := c.call(ctx, http.MethodPost, c.baseURL+createTaskPath, bytes.NewReader(body), &data); err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", errors.New("empty taskId in response")
	}
	return data.TaskID, nil
}

type taskRecord struct {
	TaskID     string `json:"taskId"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailCode   string `json:"failCode"`
	FailMsg    string `json:"failMsg"`
}

func (c *Client) waitForResult(ctx context.Context, taskID string) (string, error) {
	endpoint := c.baseURL + recordInfoPath + "?" + url.Values{"taskId": {taskID}}.Encode()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var rec taskRecord
		if err := c.call(ctx, http.MethodGet, endpoint, nil, &rec); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTaskTimeout
			}
			return "", fmt.Errorf("poll task: %w", err)
		}

		switch rec.State {
		case "success":
			var result struct {
				ResultURLs []string `json:"resultUrls"`
			}
			if err := json.Unmarshal([]byte(rec.ResultJSON), &result); err != nil {
				return "", fmt.Errorf("parse resultJson: %w", err)
			}
			if len(result.ResultURLs) == 0 {
				return "", errors.New("no resultUrls in result")
			}
			return result.ResultURLs[0], nil
		case "fail":
			msg := rec.FailMsg
			if msg == "" {
				msg = "unknown error"
			}
			return "", fmt.Errorf("%w: %s", ErrTaskFailed, Truncate(msg, maxMessageBytes))
		case "waiting", "queuing", "generating":
		default:
			return "", fmt.Errorf("unknown task state: %q", rec.State)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTaskTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, Truncate(string(raw), maxMessageBytes))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != http.StatusOK {
		return fmt.Errorf("api code %d: %s", env.Code, Truncate(env.Msg, maxMessageBytes))
	}
	return json.Unmarshal(env.Data, out)
}

// Download fetches a result image.
func (c *Client) Download(ctx context.Context, resultURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download result: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("download result: %w", err)
	}
	if len(data) > maxDownloadSize {
		return nil, errors.New("download result: image too large")
	}
	return data, nil
}

// Truncate trims s to at most limit bytes of valid UTF-8, cutting on a rune
// boundary. Invalid sequences are replaced and NUL bytes dropped so the text
// can be stored in a Postgres text column.
func Truncate(s string, limit int) string {
	s = strings.ToValidUTF8(strings.TrimSpace(s), "\uFFFD")
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) <= limit {
		return s
	}
	const ellipsis = "..."
	cut := limit - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
