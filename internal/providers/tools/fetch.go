package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inbucket/html2text"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/retry"
)

const (
	FetchToolName = "fetch_url"

	maxResponseSize     = 1 << 20 // 1MB limit
	defaultFetchTimeout = 15 * time.Second
)

const fetchURLSchema = `
{
  "type": "object",
  "properties": {
    "url": { "type": "string", "description": "The URL to fetch" }
  },
  "required": ["url"]
}
`

type Fetch struct {
	client  *http.Client
	retrier *retry.Retrier
}

func NewFetchWithTimeout(timeout time.Duration, retryCfg *retry.Config) *Fetch {
	return &Fetch{
		client: &http.Client{
			Timeout: timeout,
		},
		retrier: retry.NewRetrier(retryCfg),
	}
}

func NewFetch() *Fetch {
	return NewFetchWithTimeout(defaultFetchTimeout, nil)
}

func (f *Fetch) FetchURL(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	var body string
	err := f.retrier.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", core.TuskUserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		case resp.StatusCode >= 400:
			return retry.Permanent(fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status))
		}

		body, err = html2text.FromReader(io.LimitReader(resp.Body, maxResponseSize), html2text.Options{
			OmitLinks:    false,
			PrettyTables: true,
		})
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return body, nil
}

func (f *Fetch) Definitions() []Definition {
	return []Definition{{
		Name:        FetchToolName,
		Description: "Fetch content from a URL (HTTP GET)",
		Schema:      fetchURLSchema,
		Handler:     f.FetchURL,
	}}
}
