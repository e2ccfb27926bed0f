// Package stream owns the single cancellable connection to the game
// engine's event stream and the at-most-one-active-stream invariant.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"council-game-demo/client/game/events"
	"council-game-demo/client/pkg/logger"
)

const (
	// SSE data lines can carry full reveal payloads; allow large tokens.
	scanBufferSize = 64 * 1024
	maxLineSize    = 1024 * 1024
)

// Client opens server-sent event streams against the engine.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates an SSE client. headerTimeout bounds the wait for
// response headers only; the stream body itself has no deadline, the
// engine enforces its own.
func NewClient(baseURL, apiKey string, headerTimeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: headerTimeout,
			},
		},
		log: log,
	}
}

// Open POSTs body (JSON, nil for an empty request) to path and invokes fn
// for every decoded event, in arrival order, until the stream closes.
// Malformed lines and unknown event types are dropped; one bad line must
// not abort an otherwise-healthy session. Context cancellation is not an
// error.
func (c *Client) Open(ctx context.Context, path string, body any, fn func(events.Event)) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isCanceled(ctx, err) {
			return nil
		}
		return fmt.Errorf("error opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream request failed with status code %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, scanBufferSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		ev, err := events.Decode([]byte(payload))
		if err != nil {
			if errors.Is(err, events.ErrUnknownType) {
				c.log.Debug("dropping unknown event", "payload", truncate(payload, 120))
			} else {
				c.log.Debug("dropping malformed event line", "error", err.Error())
			}
			continue
		}
		fn(ev)
	}

	if err := scanner.Err(); err != nil {
		if isCanceled(ctx, err) {
			return nil
		}
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
