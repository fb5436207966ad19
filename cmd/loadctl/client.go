package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/loads"
)

// APIError: ответ dispatch-api с кодом ошибки.
type APIError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("%s (HTTP %d, retryable)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

type LoadLists struct {
	Confirmed   []*models.Load `json:"confirmed"`
	Unconfirmed []*models.Load `json:"unconfirmed"`
}

func (c *Client) List(ctx context.Context) (*LoadLists, error) {
	var out LoadLists
	return &out, c.do(ctx, http.MethodGet, "/loads", nil, &out)
}

func (c *Client) Sync(ctx context.Context) (*LoadLists, error) {
	var out LoadLists
	return &out, c.do(ctx, http.MethodPost, "/loads/sync", nil, &out)
}

func (c *Client) Show(ctx context.Context, id string) (*models.Load, error) {
	var out models.Load
	return &out, c.do(ctx, http.MethodGet, "/loads/"+id, nil, &out)
}

func (c *Client) Confirm(ctx context.Context, id, pin string) (*models.Load, error) {
	var out models.Load
	return &out, c.do(ctx, http.MethodPost, "/loads/"+id+"/confirm", map[string]string{"pin": pin}, &out)
}

func (c *Client) ConfirmAll(ctx context.Context, pin string) ([]*models.Load, error) {
	var out struct {
		Confirmed []*models.Load `json:"confirmed"`
	}
	err := c.do(ctx, http.MethodPost, "/loads/confirm-all", map[string]string{"pin": pin}, &out)
	return out.Confirmed, err
}

func (c *Client) Reject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/loads/"+id+"/reject", nil, nil)
}

func (c *Client) Pickup(ctx context.Context, id string) (*models.Load, error) {
	var out models.Load
	return &out, c.do(ctx, http.MethodPost, "/loads/"+id+"/pickup", nil, &out)
}

func (c *Client) Deliver(ctx context.Context, id, notes string, photos []string) (*models.Load, error) {
	var out models.Load
	body := map[string]any{"notes": notes, "photoRefs": photos}
	return &out, c.do(ctx, http.MethodPost, "/loads/"+id+"/delivery", body, &out)
}

func (c *Client) Reassign(ctx context.Context, id, reason, details string) error {
	body := map[string]string{"reason": reason, "details": details}
	return c.do(ctx, http.MethodPost, "/loads/"+id+"/reassignment", body, nil)
}

func (c *Client) State(ctx context.Context) (*loads.State, error) {
	var out loads.State
	return &out, c.do(ctx, http.MethodGet, "/state", nil, &out)
}

func (c *Client) Events(ctx context.Context, id string, limit int) ([]*models.LoadEvent, error) {
	var out struct {
		Events []*models.LoadEvent `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/loads/%s/events?limit=%d", id, limit), nil, &out)
	return out.Events, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error     string `json:"error"`
			Retryable bool   `json:"retryable"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Retryable = e.Retryable
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode response")
}
