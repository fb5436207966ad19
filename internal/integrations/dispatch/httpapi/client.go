package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
)

// Client ходит в REST API диспетчерской. Реализует DataSource, PinValidator и ActionGateway реестра.
type Client struct {
	baseURL  string
	apiKey   string
	driverID string
	httpc    *http.Client
}

func New(baseURL, apiKey, driverID string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		driverID: driverID,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type loadsBody struct {
	Loads []*models.Load `json:"loads"`
}

type pinBody struct {
	Pin string `json:"pin"`
}

type pinResult struct {
	Valid bool `json:"valid"`
}

type confirmBody struct {
	LoadIDs []string `json:"loadIds"`
}

type deliveryBody struct {
	Notes     string   `json:"notes"`
	PhotoRefs []string `json:"photoRefs"`
}

type reassignmentBody struct {
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) FetchAll(ctx context.Context) ([]*models.Load, error) {
	var out loadsBody
	if err := c.do(ctx, http.MethodGet, "/loads", nil, &out); err != nil {
		return nil, err
	}
	return out.Loads, nil
}

func (c *Client) FetchDetail(ctx context.Context, loadID string) (*models.Load, error) {
	var out models.Load
	err := c.do(ctx, http.MethodGet, "/loads/"+url.PathEscape(loadID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckPin(ctx context.Context, pin string) (bool, error) {
	var out pinResult
	if err := c.do(ctx, http.MethodPost, "/pin/check", pinBody{Pin: pin}, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

func (c *Client) ConfirmLoads(ctx context.Context, loadIDs []string) error {
	return c.do(ctx, http.MethodPost, "/loads/confirm", confirmBody{LoadIDs: loadIDs}, nil)
}

func (c *Client) RejectLoad(ctx context.Context, loadID string) error {
	return c.do(ctx, http.MethodPost, "/loads/"+url.PathEscape(loadID)+"/reject", nil, nil)
}

func (c *Client) ConfirmPickup(ctx context.Context, loadID string) error {
	return c.do(ctx, http.MethodPost, "/loads/"+url.PathEscape(loadID)+"/pickup", nil, nil)
}

func (c *Client) CompleteDelivery(ctx context.Context, proof models.DeliveryProof) error {
	body := deliveryBody{Notes: proof.Notes, PhotoRefs: proof.PhotoRefs}
	return c.do(ctx, http.MethodPost, "/loads/"+url.PathEscape(proof.LoadID)+"/delivery", body, nil)
}

func (c *Client) SubmitReassignment(ctx context.Context, req models.ReassignmentRequest) error {
	body := reassignmentBody{Reason: req.Reason, Details: req.Details}
	return c.do(ctx, http.MethodPost, "/loads/"+url.PathEscape(req.LoadID)+"/reassignment", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/drivers/%s%s", url.PathEscape(c.driverID), path)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("dispatch API rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		// сообщение диспетчерской показываем водителю как есть
		var eb errorBody
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb) == nil && eb.Message != "" {
			return errors.New(eb.Message)
		}
		return fmt.Errorf("dispatch API http %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
