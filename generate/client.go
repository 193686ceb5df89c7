// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/shaderlab/internal/logging"
)

const (
	// DefaultBaseURL is the service root used when none is configured.
	DefaultBaseURL = "http://localhost:4000/api"

	// DefaultTimeout bounds one generation request.
	DefaultTimeout = 60 * time.Second

	// RequestIDHeader carries the correlation id of a request.
	RequestIDHeader = "X-Request-ID"

	defaultUserAgent = "shaderlab"
	maxResponseBytes = 4 << 20
)

// Request is the body sent to the service.
type Request struct {
	Prompt string `json:"prompt"`
}

// Response is the body returned by the service.
type Response struct {
	Shader string `json:"shader"`
	Error  string `json:"error,omitempty"`
}

// Client calls the generation service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL sets the service root, for example "http://localhost:4000/api".
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithTimeout bounds each request. Zero or less disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.baseURL }

// NormalizePrompt trims prompt and converts it to Unicode NFC.
func NormalizePrompt(prompt string) string {
	return norm.NFC.String(strings.TrimSpace(prompt))
}

// Generate asks the service for a shader matching prompt and returns its
// source.
//
// A blank prompt fails with ErrEmptyPrompt before any request is sent.
// Transport failures are *NetworkError. A reply without a body is
// ErrEmptyResponse, whatever its status. Any other failed or malformed
// reply is *ServiceError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = NormalizePrompt(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(Request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("generate: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-shader", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("generate: create request: %w", err)
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, id)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log := logging.Logger().With("request_id", id)
	log.Debug("generate: request", "url", req.URL.String(), "prompt_bytes", len(prompt))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength == 0 || resp.Header.Get("Content-Length") == "0" {
		return "", ErrEmptyResponse
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	if len(body) == 0 {
		return "", ErrEmptyResponse
	}
	log.Debug("generate: response", "status", resp.StatusCode,
		"bytes", len(body), "elapsed", time.Since(start))

	var data Response
	parseErr := json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := defaultServiceMessage
		if parseErr == nil && data.Error != "" {
			msg = data.Error
		}
		return "", &ServiceError{Status: resp.StatusCode, Message: msg}
	}
	if parseErr != nil {
		return "", &ServiceError{Status: resp.StatusCode, Message: "malformed response: " + parseErr.Error()}
	}
	if strings.TrimSpace(data.Shader) == "" {
		return "", &ServiceError{Status: resp.StatusCode, Message: "response has no shader"}
	}
	return data.Shader, nil
}
