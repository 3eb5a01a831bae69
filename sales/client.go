package sales

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

	"go.uber.org/zap"

	"github.com/yllada/ssht-client/common"
)

// Sales API errors.
var (
	ErrInvalidResponse = errors.New("invalid server response")
	ErrIncomplete      = errors.New("incomplete payment data")
	ErrNotFound        = errors.New("not found")
)

const (
	pathPlans       = "/api/sales/plans"
	pathPurchase    = "/api/sales/purchase"
	pathStatus      = "/api/sales/status/"
	pathCredentials = "/api/sales/credentials/"
	pathCheckUser   = "/check/"
)

// envelope wraps every sales API response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  string          `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client is a client for the sales and account API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.SugaredLogger

	// CacheBust appends a _t timestamp to every request.
	CacheBust bool
	now       func() time.Time
}

// NewClient returns a client for baseURL. An empty URL uses the public API.
func NewClient(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if baseURL == "" {
		baseURL = common.APIBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		logger:    logger.Named("sales"),
		CacheBust: true,
		now:       time.Now,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) url(path string) string {
	u := c.baseURL + path
	if c.CacheBust {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + "_t=" + strconv.FormatInt(c.now().UnixMilli(), 10)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")

	c.logger.Debugw("request", "method", method, "path", path)
	return c.client.Do(req)
}

// request performs an enveloped call and decodes its data into out.
// It returns false when the envelope carried no data.
func (c *Client) request(ctx context.Context, method, path string, in, out any) (bool, error) {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, statusError(resp, env)
	}
	if decodeErr != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidResponse, decodeErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return true, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func statusError(resp *http.Response, env envelope) error {
	msg := env.Message
	if msg == "" {
		msg = env.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// Plans lists the plans currently on sale.
func (c *Client) Plans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	if _, err := c.request(ctx, http.MethodGet, pathPlans, nil, &plans); err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []Plan{}
	}
	return plans, nil
}

// CreatePurchase creates an invoice for req.
func (c *Client) CreatePurchase(ctx context.Context, req PurchaseRequest) (*Purchase, error) {
	if err := ValidateEmail(req.CustomerEmail); err != nil {
		return nil, err
	}

	var p Purchase
	ok, err := c.request(ctx, http.MethodPost, pathPurchase, req, &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no purchase data", ErrInvalidResponse)
	}
	if p.InvoiceID == "" || p.PaymentID == "" {
		return nil, ErrIncomplete
	}
	c.logger.Infow("purchase created", "invoice", p.InvoiceID, "plan", req.PlanID)
	return &p, nil
}

// PaymentStatus returns the status of an invoice.
func (c *Client) PaymentStatus(ctx context.Context, invoiceID string) (*PaymentStatus, error) {
	var s PaymentStatus
	ok, err := c.request(ctx, http.MethodGet, pathStatus+url.PathEscape(invoiceID), nil, &s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payment status: %w", ErrNotFound)
	}
	return &s, nil
}

// Credentials returns the credentials delivered for a payment.
func (c *Client) Credentials(ctx context.Context, paymentID ID) (*Credentials, error) {
	var cr Credentials
	ok, err := c.request(ctx, http.MethodGet, pathCredentials+url.PathEscape(paymentID.String()), nil, &cr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("credentials: %w", ErrNotFound)
	}
	return &cr, nil
}

// CheckUser returns usage and expiry for an account. This endpoint
// answers with a bare object rather than an envelope.
func (c *Client) CheckUser(ctx context.Context, username string) (*UserInfo, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}

	resp, err := c.do(ctx, http.MethodGet, pathCheckUser+url.PathEscape(username), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("failed to fetch user %s: HTTP %d", username, resp.StatusCode),
		}
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &info, nil
}
