// Package remote is the gateway to the commerce API cart and wishlist
// endpoints. Every call is bounded by a per-call timeout and every failure is
// returned as a classified *errors.Error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	responseBodyReadLimit int64 = 4096
	requestIDHeader             = "X-Request-ID"
)

var errBaseURLRequired = errors.New("commerce api base url is required")

// TokenSource yields the bearer token for the active session, or "" for guests.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

func (f TokenFunc) Token(ctx context.Context) string {
	return f(ctx)
}

// Timeouts are the default budgets per call family.
type Timeouts struct {
	CartMutation     time.Duration
	CartFetch        time.Duration
	WishlistMutation time.Duration
	WishlistFetch    time.Duration
}

// TimeoutsFromConfig copies the configured budgets.
func TimeoutsFromConfig(cfg config.RemoteConfig) Timeouts {
	return Timeouts{
		CartMutation:     cfg.CartMutationTimeout,
		CartFetch:        cfg.CartFetchTimeout,
		WishlistMutation: cfg.WishlistMutationTimeout,
		WishlistFetch:    cfg.WishlistFetchTimeout,
	}
}

var defaultTimeouts = Timeouts{
	CartMutation:     8 * time.Second,
	CartFetch:        25 * time.Second,
	WishlistMutation: 5 * time.Second,
	WishlistFetch:    25 * time.Second,
}

type callTimeoutKey struct{}

// WithCallTimeout overrides the timeout of every remote call made with ctx.
func WithCallTimeout(ctx context.Context, timeout time.Duration) context.Context {
	return context.WithValue(ctx, callTimeoutKey{}, timeout)
}

func callTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	if override, ok := ctx.Value(callTimeoutKey{}).(time.Duration); ok && override > 0 {
		return override
	}
	return fallback
}

// Client performs the HTTP calls shared by CartClient and WishlistClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	timeouts   Timeouts
	logg       *logger.Logger
	metrics    *metrics.SyncMetrics
	validate   *validator.Validate
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithTimeouts overrides the per-call budgets. Zero fields keep their defaults.
func WithTimeouts(timeouts Timeouts) Option {
	return func(c *Client) {
		if timeouts.CartMutation > 0 {
			c.timeouts.CartMutation = timeouts.CartMutation
		}
		if timeouts.CartFetch > 0 {
			c.timeouts.CartFetch = timeouts.CartFetch
		}
		if timeouts.WishlistMutation > 0 {
			c.timeouts.WishlistMutation = timeouts.WishlistMutation
		}
		if timeouts.WishlistFetch > 0 {
			c.timeouts.WishlistFetch = timeouts.WishlistFetch
		}
	}
}

// WithLogger attaches a logger for failed calls.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// WithMetrics attaches call metrics.
func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a commerce API client rooted at baseURL (e.g. https://shop.example.com/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(jsonTagName)

	client := &Client{
		httpClient: &http.Client{},
		baseURL:    trimmed,
		timeouts:   defaultTimeouts,
		validate:   validate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Timeouts returns the effective per-call budgets.
func (c *Client) Timeouts() Timeouts {
	return c.timeouts
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e envelope) failure() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// do executes one call. out, when non-nil, receives the decoded body.
func (c *Client) do(ctx context.Context, op, method, path string, body any, timeout time.Duration, out any) (err error) {
	if body != nil {
		if vErr := c.validate.Struct(body); vErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, vErr, op+": invalid request")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout(ctx, timeout))
	defer cancel()

	requestID := uuid.NewString()
	started := time.Now()
	defer func() {
		c.metrics.ObserveRemoteCall(op, time.Since(started))
		if err != nil {
			c.metrics.IncRemoteFailure(op, string(pkgerrors.CodeOf(err)))
			c.logFailure(ctx, op, requestID, err)
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, mErr, op+": marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op+": build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.Token(ctx)); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.FromTransport(err, op+": request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.FromHTTPStatus(resp.StatusCode, failureMessage(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.FromTransport(err, op+": read response")
	}
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeParse, err, op+": decode response")
		}
		if !env.Success {
			return pkgerrors.FromHTTPStatus(http.StatusBadRequest, env.failure())
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeParse, err, op+": decode response")
		}
	}
	return nil
}

func (c *Client) logFailure(ctx context.Context, op, requestID string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"op":         op,
		"request_id": requestID,
		"code":       string(pkgerrors.CodeOf(err)),
	})
	if pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Soft {
		c.logg.Warn(ctx, fmt.Sprintf("commerce api call failed: %v", err))
		return
	}
	ctx = c.logg.WithField(ctx, "error_chain", pkgerrors.Dump(err).Chain)
	c.logg.Error(ctx, "commerce api call failed", err)
}

func failureMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.failure() != "" {
		return env.failure()
	}
	return strings.TrimSpace(string(raw))
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
