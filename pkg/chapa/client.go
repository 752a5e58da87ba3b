package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public Chapa API root
const DefaultBaseURL = "https://api.chapa.co/v1"

// ErrPaymentNotSuccessful is returned by Verify when the gateway knows the
// transaction but it did not complete
var ErrPaymentNotSuccessful = errors.New("payment not successful")

// Client talks to the Chapa payment gateway
type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// Config holds configuration for the Chapa client
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// NewClient creates a new Chapa client
func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		secretKey: config.SecretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

// Customization is shown on the hosted checkout page
type Customization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// InitializeRequest represents a checkout initialisation
type InitializeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Email         string          `json:"email,omitempty"`
	FirstName     string          `json:"first_name,omitempty"`
	LastName      string          `json:"last_name,omitempty"`
	TxRef         string          `json:"tx_ref"`
	CallbackURL   string          `json:"callback_url,omitempty"`
	ReturnURL     string          `json:"return_url,omitempty"`
	Customization *Customization  `json:"customization,omitempty"`
}

// InitializeResponse represents the gateway reply to an initialisation
type InitializeResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

// Verification is the gateway's view of a transaction
type Verification struct {
	TxRef     string          `json:"tx_ref"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Email     string          `json:"email"`
}

type verifyResponse struct {
	Message string        `json:"message"`
	Status  string        `json:"status"`
	Data    *Verification `json:"data"`
}

// APIError is returned when the gateway answers with a non-2xx status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chapa: status %d: %s", e.StatusCode, e.Message)
}

// Initialize creates a hosted checkout and returns its URL
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (string, error) {
	if req.TxRef == "" {
		return "", fmt.Errorf("tx_ref is required")
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("amount must be greater than zero")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal initialize request: %w", err)
	}

	var resp InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return "", err
	}
	if resp.Status != "success" || resp.Data.CheckoutURL == "" {
		return "", fmt.Errorf("initialize failed: %s", resp.Message)
	}
	return resp.Data.CheckoutURL, nil
}

// Verify looks up a transaction by tx_ref. It returns ErrPaymentNotSuccessful,
// together with the gateway's view, when the payment did not complete.
func (c *Client) Verify(ctx context.Context, txRef string) (*Verification, error) {
	if txRef == "" {
		return nil, fmt.Errorf("tx_ref is required")
	}

	var resp verifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(txRef), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("verify failed: %s", resp.Message)
	}
	if resp.Status != "success" || !strings.EqualFold(resp.Data.Status, "success") {
		return resp.Data, fmt.Errorf("%w: %s", ErrPaymentNotSuccessful, resp.Data.Status)
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Message interface{} `json:"message"`
		}
		message := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &msg) == nil && msg.Message != nil {
			message = fmt.Sprint(msg.Message)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
