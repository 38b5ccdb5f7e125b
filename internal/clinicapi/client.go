package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const (
	defaultTimeout  = 15 * time.Second
	maxErrorMessage = 300
)

var tracer = otel.Tracer("clinicdesk.internal.clinicapi")

// ErrUnauthorized is matched by *APIError values carrying a 401.
var ErrUnauthorized = errors.New("clinicapi: unauthorized")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinicapi: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Config holds configuration for the clinic backend client
type Config struct {
	BaseURL    string // e.g. "http://localhost:3000"
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.APIMetrics
}

// Client is a typed JSON client for the clinic REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	logger     *logging.Logger
	metrics    *metrics.APIMetrics
}

// New creates a client bound to session.
func New(cfg Config, session *Session) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("clinicapi: BaseURL is required")
	}
	if session == nil {
		return nil, fmt.Errorf("clinicapi: session is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		session:    session,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

// do sends one request. route is the templated path used for metrics and spans.
// A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, route, path string, in, out any) error {
	ctx, span := tracer.Start(ctx, "clinicapi.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
	)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("clinicapi: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("clinicapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, route, 0, time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("clinicapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(method, route, resp.StatusCode, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("clinicapi: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody, resp.Status),
		}
		span.SetStatus(codes.Error, apiErr.Message)
		if resp.StatusCode == http.StatusUnauthorized {
			c.metrics.ObserveUnauthorized()
			c.logger.Warn("clinicapi: session rejected", "method", method, "route", route)
			c.session.unauthorized()
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("clinicapi: decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"errors": [...]} from a failure
// body, falling back to the truncated raw body or the HTTP status text.
func errorMessage(body []byte, status string) string {
	var env struct {
		Error   any      `json:"error"`
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		switch v := env.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if env.Message != "" {
			return env.Message
		}
		if len(env.Errors) > 0 {
			return strings.Join(env.Errors, "; ")
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return msg
}
