// Package apiclient wraps one HTTP client per backend resource. Every request
// gets a bearer token from the token broker before it leaves the process; a
// 401 response forces a token refresh and is retried exactly once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"assetgate/internal/idp"
	"assetgate/internal/platform/config"
	"assetgate/internal/platform/metrics"
	dErrors "assetgate/pkg/domain-errors"
)

// TokenSource is the broker surface the client needs. Acquire serves cached
// tokens; ForceRefresh bypasses the cache after a 401.
type TokenSource interface {
	Acquire(ctx context.Context, scopes []string) (*idp.Token, error)
	ForceRefresh(ctx context.Context, scopes []string) (*idp.Token, error)
}

// Client calls one backend resource with bearer credentials.
type Client struct {
	resource config.Resource
	http     *http.Client
	tokens   TokenSource
	log      *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// New creates a resource client. httpClient may be nil; metrics may be nil.
func New(resource config.Resource, tokens TokenSource, httpClient *http.Client, log *slog.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		resource: resource,
		http:     httpClient,
		tokens:   tokens,
		log:      log,
		metrics:  m,
		tracer:   otel.Tracer("assetgate/internal/apiclient"),
	}
}

// Resource returns the descriptor this client is bound to.
func (c *Client) Resource() config.Resource { return c.resource }

// JSON performs a request with an optional JSON body and returns the raw
// response payload. A 204 response is normalized to a nil payload, never an
// error. Non-2xx responses are normalized into *Error.
func (c *Client) JSON(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	status, payload, _, err := c.do(ctx, method, path, encoded, "application/json")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(payload) == 0 {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}

// Get decodes a JSON GET response into out. out is left untouched on 204.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	payload, err := c.JSON(ctx, http.MethodGet, path, nil)
	if err != nil || payload == nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Forward performs a passthrough request with a verbatim body, for the proxy
// endpoints. The response status and payload are returned as-is for 2xx;
// errors are normalized like JSON.
func (c *Client) Forward(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, http.Header, error) {
	return c.do(ctx, method, path, body, contentType)
}

// do runs the request with bearer injection and the retry-once-on-401 rule.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, http.Header, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient.do", trace.WithAttributes(
		attribute.String("resource.name", c.resource.Name),
		attribute.String("http.method", method),
	))
	defer span.End()

	tok, err := c.tokens.Acquire(ctx, c.resource.Scopes)
	if err != nil {
		// No network round-trip with a missing token.
		span.RecordError(err)
		return 0, nil, nil, err
	}

	status, payload, header, err := c.send(ctx, method, path, body, contentType, tok.AccessToken)
	if err != nil {
		span.RecordError(err)
		return 0, nil, nil, err
	}

	if status == http.StatusUnauthorized {
		// Exactly one retry with a forced refresh. A second 401 surfaces as
		// an authentication failure, never a third attempt.
		if c.metrics != nil {
			c.metrics.RequestRetries.Inc()
		}
		c.log.InfoContext(ctx, "retrying request after 401",
			"resource", c.resource.Name, "method", method, "path", path)

		tok, err = c.tokens.ForceRefresh(ctx, c.resource.Scopes)
		if err != nil {
			span.RecordError(err)
			return 0, nil, nil, err
		}
		status, payload, header, err = c.send(ctx, method, path, body, contentType, tok.AccessToken)
		if err != nil {
			span.RecordError(err)
			return 0, nil, nil, err
		}
		if status == http.StatusUnauthorized {
			authErr := normalizeError(status, payload)
			authErr.Message = "authentication failed after token refresh"
			span.RecordError(authErr)
			return 0, nil, nil, authErr
		}
	}

	if status >= 400 {
		normalized := normalizeError(status, payload)
		span.RecordError(normalized)
		return 0, nil, nil, normalized
	}
	return status, payload, header, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType, accessToken string) (int, []byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	url := c.resource.BaseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "build resource request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "resource request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "read resource response")
	}
	return resp.StatusCode, payload, resp.Header, nil
}

// normalizeError maps an error response body onto the {message, status, code}
// shape, falling back to the status text when the body is not parseable.
func normalizeError(status int, payload []byte) *Error {
	normalized := &Error{Status: status, Message: http.StatusText(status)}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			normalized.Message = body.Message
		} else if body.Error != "" {
			normalized.Message = body.Error
		}
		normalized.Code = body.Code
	}
	return normalized
}
