// Package inference talks to a local Ollama-style generation server.
package inference

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

	"go.uber.org/zap"
)

// ErrUnreachable marks transport-level failures reaching the inference
// server. Handlers map it to a fixed service-unavailable reply.
var ErrUnreachable = errors.New("inference server unreachable")

// GenerateRequest is the upstream /api/generate request body. Artifact
// content travels inline as base64 images, never as a filesystem path.
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

// GenerateResponse is one upstream reply object. In streaming mode the
// server emits a sequence of these as NDJSON, the last with Done set.
type GenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// StreamStats accumulates what the relay learned from a finished stream.
type StreamStats struct {
	Model           string
	PromptEvalCount int
	EvalCount       int
}

// Client is a thin HTTP client for the inference server.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// New creates a Client. Every call carries a deadline of timeout.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
}

func (c *Client) post(ctx context.Context, req GenerateRequest) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	body, err := json.Marshal(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		cancel()
		c.logger.Warn("inference request failed", zap.String("model", req.Model), zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, cancel, nil
}

// Generate performs one non-streaming generation call and returns the
// whole structured reply.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false

	resp, cancel, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, truncate(data, 256))
	}

	var out GenerateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	return &out, nil
}

// Stream performs a streaming generation call and relays the upstream
// NDJSON bytes to w line by line without buffering the whole body. The
// response header is written only after the upstream accepted the
// request, so callers can still report pre-stream failures as errors.
func (c *Client) Stream(ctx context.Context, req GenerateRequest, w http.ResponseWriter) (*StreamStats, error) {
	req.Stream = true

	resp, cancel, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, truncate(data, 256))
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	stats := &StreamStats{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if _, err := w.Write(line); err != nil {
			return stats, fmt.Errorf("relay stream: %w", err)
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return stats, fmt.Errorf("relay stream: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}

		var chunk GenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Model != "" {
			stats.Model = chunk.Model
		}
		if chunk.Done {
			stats.PromptEvalCount = chunk.PromptEvalCount
			stats.EvalCount = chunk.EvalCount
		}
	}

	if err := scanner.Err(); err != nil {
		// Mid-stream failure: bytes already flowed, nothing more to send.
		return stats, fmt.Errorf("reading stream: %w", err)
	}
	return stats, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}
