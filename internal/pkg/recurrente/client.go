package recurrente

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

	"github.com/boletera/boletera/app/models"
)

const defaultAPIBaseURL = "https://app.recurrente.com/api"

// APIError carries a non-2xx response from Recurrente.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recurrente api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to Recurrente's REST API. Credentials and base URL come from
// the scope's gateway settings so sandbox/production is never global state.
type Client struct {
	APIKey    string
	APISecret string
	BaseURL   string

	HTTPClient *http.Client
}

// NewClient builds a client from resolved gateway settings.
func NewClient(setting *models.GatewaySetting) *Client {
	base := strings.TrimRight(setting.APIBaseURL(), "/")
	if base == "" {
		base = defaultAPIBaseURL
	}
	return &Client{
		APIKey:     setting.APIKey,
		APISecret:  setting.APISecret,
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-PUBLIC-KEY", c.APIKey)
	req.Header.Set("X-SECRET-KEY", c.APISecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// CreateCheckout opens a new checkout session.
func (c *Client) CreateCheckout(ctx context.Context, req *CreateCheckoutRequest) (*Checkout, error) {
	if len(req.Items) == 0 {
		return nil, errors.New("checkout requires at least one item")
	}
	var out Checkout
	if err := c.do(ctx, http.MethodPost, "/checkouts", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("recurrente returned a checkout without an id")
	}
	return &out, nil
}

// GetCheckout fetches the current state of a checkout session.
func (c *Client) GetCheckout(ctx context.Context, checkoutID string) (*Checkout, error) {
	id := strings.TrimSpace(checkoutID)
	if id == "" {
		return nil, errors.New("checkout id is required")
	}
	var out Checkout
	if err := c.do(ctx, http.MethodGet, "/checkouts/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundPayment asks Recurrente to refund a settled payment.
func (c *Client) RefundPayment(ctx context.Context, paymentID string) (*RefundResponse, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}
	var out RefundResponse
	if err := c.do(ctx, http.MethodPost, "/payments/"+id+"/refund", map[string]string{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TestConnection probes the checkouts endpoint with the configured
// credentials. Invalid credentials surface as an *APIError.
func (c *Client) TestConnection(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/checkouts/connection_test", nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("recurrente rejected the api credentials: %w", err)
		case http.StatusNotFound:
			// Endpoint reached and authenticated; the probe id simply
			// does not exist.
			return nil
		}
	}
	return err
}
