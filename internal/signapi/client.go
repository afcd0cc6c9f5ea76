package signapi

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL points to a locally running SignLearner API.
	DefaultBaseURL = "http://localhost:8000"

	TextToASLPath      = "/text-to-asl"
	GenerateLessonPath = "/generate-lesson"

	// RequestIDHeader carries the client-generated id of each call.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// Client calls the SignLearner HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets a per-request timeout. Zero disables it. A client passed to
// WithHTTPClient is copied, not modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout < 0 {
			return
		}
		hc := *c.client
		hc.Timeout = timeout
		c.client = &hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// TextToASL requests the video sequence for a piece of text.
func (c *Client) TextToASL(ctx context.Context, req TextToASLRequest) (*TextToASLResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("signlearner client is nil")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	var parsed TextToASLResponse
	requestID, err := c.post(ctx, TextToASLPath, req, textToASLSchema, &parsed)
	if err != nil {
		return nil, err
	}
	if msg := strings.TrimSpace(parsed.Error); msg != "" {
		return nil, &APIError{
			Status:    http.StatusOK,
			RequestID: requestID,
			Err:       fmt.Errorf("text-to-asl reported error: %s", msg),
		}
	}
	return &parsed, nil
}

// GenerateLesson requests a lesson plan built around req.Prompt.
func (c *Client) GenerateLesson(ctx context.Context, req LessonRequest) (*LessonResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("signlearner client is nil")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	var parsed LessonResponse
	requestID, err := c.post(ctx, GenerateLessonPath, req, generateLessonSchema, &parsed)
	if err != nil {
		return nil, err
	}
	if msg := strings.TrimSpace(parsed.Error); msg != "" {
		return nil, &APIError{
			Status:    http.StatusOK,
			RequestID: requestID,
			Err:       fmt.Errorf("generate-lesson reported error: %s", msg),
		}
	}
	return &parsed, nil
}

// Ping calls the API root and returns its welcome message.
func (c *Client) Ping(ctx context.Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("signlearner client is nil")
	}

	requestID := requestIDOrNew(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("build ping request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &APIError{RequestID: requestID, Err: fmt.Errorf("send ping request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &APIError{Status: resp.StatusCode, RequestID: requestID, Err: fmt.Errorf("read ping response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{
			Status:    resp.StatusCode,
			Message:   serverMessage(respBody),
			RequestID: requestID,
			Err:       fmt.Errorf("ping returned status %d", resp.StatusCode),
		}
	}

	var welcome welcomeResponse
	if err := json.Unmarshal(respBody, &welcome); err != nil {
		return "", decodeError(requestID, err)
	}
	return strings.TrimSpace(welcome.Message), nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, schemaName string, out any) (string, error) {
	requestID := requestIDOrNew(ctx)

	body, err := json.Marshal(payload)
	if err != nil {
		return requestID, fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return requestID, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return requestID, &APIError{RequestID: requestID, Err: fmt.Errorf("send %s request: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return requestID, &APIError{
			Status:    resp.StatusCode,
			RequestID: requestID,
			Err:       fmt.Errorf("read %s response: %w", endpoint, err),
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Int("bytes", len(respBody)).
		Dur("latency", time.Since(started)).
		Msg("signlearner api response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return requestID, &APIError{
			Status:    resp.StatusCode,
			Message:   serverMessage(respBody),
			RequestID: requestID,
			Err:       fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode),
		}
	}

	normalized, err := validatePayload(schemaName, respBody)
	if err != nil {
		return requestID, decodeError(requestID, err)
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return requestID, decodeError(requestID, fmt.Errorf("unmarshal payload: %w", err))
	}
	return requestID, nil
}

// serverMessage extracts the message field from an error payload body.
func serverMessage(body []byte) string {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

type requestIDKey struct{}

// ContextWithRequestID attaches the id sent in the X-Request-ID header.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the id attached by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDOrNew(ctx context.Context) string {
	if id := strings.TrimSpace(RequestIDFromContext(ctx)); id != "" {
		return id
	}
	return uuid.NewString()
}

func normalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return DefaultBaseURL
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	parsed, err := url.Parse(base)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultBaseURL
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
