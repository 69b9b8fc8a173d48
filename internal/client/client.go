// Package client talks to a tada server and exposes it as a todo.Ledger.
package client

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

	"github.com/Makepad-fr/tada/internal/httpapi"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ todo.Ledger = (*Client)(nil)

// New returns a client for the server at baseURL. token may be empty.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Create(ctx context.Context, description, initialStatus string) (model.View, error) {
	var v model.View
	err := c.do(ctx, http.MethodPost, httpapi.Prefix, httpapi.ItemRequest{Description: description, Status: initialStatus}, &v)
	return v, c.translate(err, 0, initialStatus)
}

func (c *Client) Find(ctx context.Context, id int64) (model.View, error) {
	var v model.View
	err := c.do(ctx, http.MethodGet, itemPath(id), nil, &v)
	return v, c.translate(err, id, "")
}

func (c *Client) List(ctx context.Context) ([]model.View, error) {
	var views []model.View
	err := c.do(ctx, http.MethodGet, httpapi.Prefix, nil, &views)
	return views, c.translate(err, 0, "")
}

func (c *Client) Update(ctx context.Context, id int64, description, status string) (model.View, error) {
	var v model.View
	err := c.do(ctx, http.MethodPut, itemPath(id), httpapi.ItemRequest{Description: description, Status: status}, &v)
	return v, c.translate(err, id, status)
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.translate(c.do(ctx, http.MethodDelete, itemPath(id), nil, nil), id, "")
}

func (c *Client) History(ctx context.Context, id int64) ([]model.StatusEvent, error) {
	var events []model.StatusEvent
	err := c.do(ctx, http.MethodGet, itemPath(id)+"/history", nil, &events)
	return events, c.translate(err, id, "")
}

func itemPath(id int64) string { return fmt.Sprintf("%s/%d", httpapi.Prefix, id) }

// apiError is a non-2xx reply.
type apiError struct {
	code int
	body httpapi.ErrorResponse
}

func (e *apiError) Error() string {
	msg := e.body.Error
	if msg == "" {
		msg = http.StatusText(e.code)
	}
	return fmt.Sprintf("server: %d %s", e.code, msg)
}

// translate turns server error kinds back into the ledger's error values.
func (c *Client) translate(err error, id int64, status string) error {
	var ae *apiError
	if !errors.As(err, &ae) {
		return err
	}
	switch ae.body.Kind {
	case "not_found":
		return model.ItemNotFound(id)
	case "invalid_status":
		return &model.StatusError{Value: status}
	case "invalid_argument":
		return &kindError{msg: ae.body.Error, kind: model.ErrInvalidArgument}
	case "empty_history":
		return &kindError{msg: ae.Error(), kind: model.ErrEmptyHistory}
	}
	return err
}

// kindError keeps the server's message while matching the sentinel kind.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		ae := &apiError{code: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ae.body)
		return ae
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
