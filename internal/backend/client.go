// Package backend is the REST client for the MedConnect backend auth and notification endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	userdomain "medconnect/client/internal/user/domain"
)

const (
	defaultTimeout = 15 * time.Second
	tracerName     = "medconnect/client/backend"
	// maxErrorBody caps how much of an error response is read for its message.
	maxErrorBody = 64 << 10
)

// Client calls the backend REST API. Safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default http.Client. 0 disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

// WithTracerProvider uses tp for request spans instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// New returns a Client for baseURL (e.g. http://localhost:5000).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token and user. 400/401/403 come back as *StatusError.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: login response has no token", ErrMalformedResponse)
	}
	if err := out.User.Validate(); err != nil {
		return nil, fmt.Errorf("%w: login user: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// Logout tells the backend the session ended. Callers clear local state regardless of the result.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

// Validate confirms token with the backend and returns the fresh user record.
// A 2xx body with valid=false is reported as ErrUnauthorized.
func (c *Client) Validate(ctx context.Context, token string) (*userdomain.User, error) {
	var out validateResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/validate", token, nil, &out); err != nil {
		return nil, err
	}
	if !out.Valid {
		return nil, ErrUnauthorized
	}
	if err := out.User.Validate(); err != nil {
		return nil, fmt.Errorf("%w: validate user: %v", ErrMalformedResponse, err)
	}
	return out.User, nil
}

// ListNotifications returns the current user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, token string, opts ListOptions) (*NotificationPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.UnreadOnly {
		q.Set("unreadOnly", "true")
	}
	path := "/api/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out NotificationPage
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNotification stores a notification for the current user.
func (c *Client) CreateNotification(ctx context.Context, token string, req CreateNotificationRequest) (*Notification, error) {
	var out Notification
	if err := c.do(ctx, http.MethodPost, "/api/notifications", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/read", token, nil, nil)
}

// MarkAllRead marks every notification read.
func (c *Client) MarkAllRead(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/mark-all-read", token, nil, nil)
}

// DeleteNotification deletes one notification.
func (c *Client) DeleteNotification(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), token, nil, nil)
}

// DeleteAllNotifications deletes every notification for the current user.
func (c *Client) DeleteAllNotifications(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications", token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) (err error) {
	route := path
	if i := strings.IndexByte(route, '?'); i >= 0 {
		route = route[:i]
	}
	ctx, span := c.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", route),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrTransport, ctxErr)
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrMalformedResponse)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		se.Message = eb.Message
		if se.Message == "" {
			se.Message = eb.Error
		}
	}
	return se
}
