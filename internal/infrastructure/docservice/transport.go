package docservice

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

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

const (
	headerAPIKey    = "X-API-Key"
	headerRequestID = "X-Request-Id"

	maxErrorBody = 4096
)

type call struct {
	operation   string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	return c.do(ctx, call{operation: operation, method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) postJSON(ctx context.Context, operation, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.do(ctx, call{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        body,
		contentType: "application/json",
	}, out)
}

func (c *Client) deleteJSON(ctx context.Context, operation, path string, out any) error {
	return c.do(ctx, call{operation: operation, method: http.MethodDelete, path: path}, out)
}

// do runs one call through the executor when one is configured.
func (c *Client) do(ctx context.Context, req call, out any) error {
	attempt := func(ctx context.Context) error {
		return c.roundTrip(ctx, req, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "docservice."+req.operation, attempt, classifyDocServiceError)
	} else {
		err = attempt(ctx)
	}
	return wrapTemporaryIfNeeded(req.operation, err)
}

func (c *Client) roundTrip(ctx context.Context, req call, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("docservice %s rate limit wait: %w", req.operation, err)
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.operation, err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, uuid.NewString())
	if key := c.keys.APIKey(); key != "" {
		httpReq.Header.Set(headerAPIKey, key)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.operation, 0, start)
		return domain.WrapError(domain.ErrNetwork, "docservice "+req.operation, err)
	}
	defer resp.Body.Close()
	c.observe(req.operation, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(req.operation, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrParse, "decode "+req.operation+" response", err)
	}
	return nil
}

func (c *Client) observe(operation string, statusCode int, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveRequest("docservice."+operation, statusCode, time.Since(start))
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(raw)),
		Detail:     parseDetail(raw),
	}
	return domain.WrapError(kindForStatus(resp.StatusCode), "docservice "+operation, statusErr)
}

func kindForStatus(statusCode int) error {
	switch statusCode {
	case http.StatusNotFound:
		return domain.ErrDocumentNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusConflict:
		return domain.ErrNotReady
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	default:
		return domain.ErrHTTPStatus
	}
}

// parseDetail extracts the service "detail" field. It is either a string or an object
// carrying a "message".
func parseDetail(raw []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var object struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Detail, &object); err == nil && object.Message != "" {
		return strings.TrimSpace(object.Message)
	}
	return strings.TrimSpace(string(envelope.Detail))
}
