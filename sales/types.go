package sales

import "encoding/json"

// Plan is a subscription plan offered for sale.
type Plan struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	Limit        int      `json:"limit"`
	Validate     int      `json:"validate"`
	Description  string   `json:"description"`
	DurationDays int      `json:"duration_days,omitempty"`
	Protocols    []string `json:"protocols,omitempty"`
}

// PurchaseRequest starts a purchase for a plan.
type PurchaseRequest struct {
	PlanID        int    `json:"plan_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
}

// Purchase is the invoice returned for a new purchase.
type Purchase struct {
	InvoiceID         string  `json:"invoice_id"`
	PaymentID         ID      `json:"payment_id"`
	QRCode            string  `json:"qr_code"`
	TicketURL         string  `json:"ticket_url"`
	Amount            float64 `json:"amount"`
	Username          string  `json:"username,omitempty"`
	CurrentExpiration string  `json:"current_expiration,omitempty"`
	ExpiresIn         int     `json:"expires_in,omitempty"`
}

// Payment statuses reported by the API.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// PaymentStatus is the state of an invoice.
type PaymentStatus struct {
	InvoiceID   string  `json:"invoice_id"`
	PaymentID   ID      `json:"payment_id"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	CreatedAt   string  `json:"created_at"`
	ExpiresAt   string  `json:"expires_at,omitempty"`
	ProcessedAt string  `json:"processed_at,omitempty"`
}

// SSHCredentials are the login issued for SSH profiles.
type SSHCredentials struct {
	Username       string   `json:"username"`
	Password       string   `json:"password"`
	Limit          int      `json:"limit"`
	ExpirationDate string   `json:"expiration_date"`
	CreatedAt      string   `json:"created_at,omitempty"`
	Servers        []string `json:"servers,omitempty"`
}

// V2RayCredentials are the login issued for V2Ray profiles.
type V2RayCredentials struct {
	UUID           string   `json:"uuid"`
	Limit          int      `json:"limit,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	Servers        []string `json:"servers,omitempty"`
}

// PlanSummary is the plan attached to delivered credentials.
type PlanSummary struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ValidateDays int     `json:"validate_days"`
}

// Credentials is what a completed payment delivers.
type Credentials struct {
	PaymentID   ID                `json:"payment_id"`
	InvoiceID   string            `json:"invoice_id"`
	Status      string            `json:"status"`
	Amount      float64           `json:"amount"`
	ProcessedAt string            `json:"processed_at,omitempty"`
	Plan        *PlanSummary      `json:"plan,omitempty"`
	SSH         *SSHCredentials   `json:"ssh_credentials,omitempty"`
	V2Ray       *V2RayCredentials `json:"v2ray_credentials,omitempty"`

	LegacySSH   *SSHCredentials   `json:"ssh,omitempty"`
	LegacyV2Ray *V2RayCredentials `json:"v2ray,omitempty"`
}

// SSHLogin returns the SSH credentials, preferring the current field name.
func (c *Credentials) SSHLogin() *SSHCredentials {
	if c.SSH != nil {
		return c.SSH
	}
	return c.LegacySSH
}

// V2RayLogin returns the V2Ray credentials, preferring the current field name.
func (c *Credentials) V2RayLogin() *V2RayCredentials {
	if c.V2Ray != nil {
		return c.V2Ray
	}
	return c.LegacyV2Ray
}

// HasLogin reports whether any credentials were delivered.
func (c *Credentials) HasLogin() bool {
	return c.SSHLogin() != nil || c.V2RayLogin() != nil
}

// UserInfo is the account usage returned by the check-user endpoint.
type UserInfo struct {
	Username         string `json:"username"`
	LimitConnections int    `json:"limit_connections"`
	CountConnections int    `json:"count_connections"`
	ExpirationDate   string `json:"expiration_date"`
	ExpirationDays   int    `json:"expiration_days"`
}

// ID is an identifier the API sends either as a string or as a number.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}
