// Package remote talks to the conversation/message REST backend. It strips
// transport concerns (status codes, timeouts, bodies) and maps failures onto
// the chat_errors taxonomy, but returns payloads un-normalized.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"marketplace-chat/internal/normalize"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient is optional; its own Timeout is left untouched.
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	tokens  TokenSource
	logger  *logger.Logger
}

func NewClient(cfg Config, tokens TokenSource, l *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		http:    httpClient,
		tokens:  tokens,
		logger:  l,
	}
}

func (c *Client) wrapCall(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	return c.do(ctx, op, http.MethodPost, path, bytes.NewReader(body), "application/json")
}

// do performs one request. Chat endpoints all require a session token, so a
// missing token fails before anything is sent.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	token := c.token()
	if token == "" {
		return nil, 0, chat_errors.Unauthorized(op)
	}

	requestID := logger.RequestID(ctx)
	if requestID == "" {
		requestID = logger.NewRequestID()
		ctx = logger.WithRequestID(ctx, requestID)
	}
	callCtx, cancel := c.wrapCall(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, chat_errors.Network(op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(logger.RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, chat_errors.Network(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, chat_errors.Network(op, err)
	}

	c.logger.Debug(ctx, "remote call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, chat_errors.Unauthorized(op)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, resp.StatusCode, chat_errors.Server(op, resp.StatusCode, normalize.ErrorMessage(data))
	}
	return data, resp.StatusCode, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
