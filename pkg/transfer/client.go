package transfer

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

	"github.com/samber/lo"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

const (
	defaultBaseURL        = "https://api.paystack.co"
	defaultTimeout        = 10 * time.Second
	responseBodyReadLimit = 4096

	RecipientTypeBank = "nuban"
	RecipientTypeMomo = "mobile_money"
)

var errSecretKeyRequired = errors.New("paystack secret key is required")

// Bank is one entry of the provider's bank catalog.
type Bank struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Currency string `json:"currency"`
	Type     string `json:"type"`
	Active   bool   `json:"active"`
}

// RecipientRequest registers a payout destination.
type RecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

// TransferRequest moves AmountMinor from the platform balance to a recipient.
type TransferRequest struct {
	RecipientCode string
	AmountMinor   int64
	Reason        string
	// Reference makes a resubmitted transfer a no-op on the provider side.
	Reference string
}

// TransferResult is the provider's acknowledgement of a transfer.
type TransferResult struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

// Client talks to the Paystack transfer API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	country    string
	currency   string
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

// NewClient builds the transfer client from config.
func NewClient(cfg config.TransferConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errSecretKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  key,
		country:    strings.ToLower(strings.TrimSpace(cfg.Country)),
		currency:   strings.ToUpper(strings.TrimSpace(cfg.Currency)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Currency is the settlement currency recipients are created in.
func (c *Client) Currency() string {
	return c.currency
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ListBanks returns the provider's bank catalog for the configured country.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	params := url.Values{}
	if c.country != "" {
		params.Set("country", c.country)
	}
	var banks []Bank
	if err := c.do(ctx, http.MethodGet, "/bank?"+params.Encode(), nil, &banks, http.StatusOK); err != nil {
		return nil, err
	}
	return banks, nil
}

// CreateRecipient registers a recipient and returns its recipient code.
func (c *Client) CreateRecipient(ctx context.Context, req RecipientRequest) (string, error) {
	if req.AccountNumber == "" || req.BankCode == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "account number and bank code are required")
	}
	if req.Currency == "" {
		req.Currency = c.currency
	}
	var data struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := c.do(ctx, http.MethodPost, "/transferrecipient", req, &data, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	if data.RecipientCode == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "recipient code missing from response")
	}
	return data.RecipientCode, nil
}

// InitiateTransfer sends money to a recipient.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.RecipientCode == "" {
		return TransferResult{}, pkgerrors.New(pkgerrors.CodeValidation, "recipient code is required")
	}
	if req.AmountMinor <= 0 {
		return TransferResult{}, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	body := map[string]any{
		"source":    "balance",
		"amount":    req.AmountMinor,
		"recipient": req.RecipientCode,
		"reason":    req.Reason,
	}
	if req.Reference != "" {
		body["reference"] = req.Reference
	}
	var result TransferResult
	if err := c.do(ctx, http.MethodPost, "/transfer", body, &result, http.StatusOK); err != nil {
		return TransferResult{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, okStatuses ...int) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal transfer request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build transfer request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute transfer request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read transfer response")
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if !lo.Contains(okStatuses, resp.StatusCode) || decodeErr != nil || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw[:min(len(raw), responseBodyReadLimit)]))
		}
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s %s: status %d: %s", method, strings.SplitN(path, "?", 2)[0], resp.StatusCode, msg))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode transfer response")
		}
	}
	return nil
}
