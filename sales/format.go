package sales

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Email validation errors.
var (
	ErrEmailRequired     = errors.New("email is required")
	ErrEmailTooShort     = errors.New("email is too short")
	ErrEmailTooLong      = errors.New("email is too long (maximum 100 characters)")
	ErrEmailFormat       = errors.New("invalid email format")
	ErrEmailAt           = errors.New("email must contain exactly one @")
	ErrEmailLocal        = errors.New("invalid email local part")
	ErrEmailDomain       = errors.New("invalid email domain")
	ErrEmailDomainDot    = errors.New("email domain must contain at least one dot")
	ErrEmailBoundaryChar = errors.New("email cannot start or end with . or -")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)

// ValidateEmail checks a customer email before a purchase.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return ErrEmailRequired
	case len(email) < 5:
		return ErrEmailTooShort
	case len(email) > 100:
		return ErrEmailTooLong
	case !emailPattern.MatchString(email):
		return ErrEmailFormat
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ErrEmailAt
	}
	local, domain := parts[0], parts[1]
	if local == "" || len(local) > 64 {
		return ErrEmailLocal
	}
	if domain == "" || len(domain) > 63 {
		return ErrEmailDomain
	}
	if !strings.Contains(domain, ".") {
		return ErrEmailDomainDot
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") ||
		strings.HasPrefix(domain, "-") || strings.HasSuffix(domain, "-") {
		return ErrEmailBoundaryChar
	}
	return nil
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatPrice formats a price in Brazilian reais, e.g. "R$ 1.234,56".
func FormatPrice(price float64) string {
	return "R$ " + brl.Sprintf("%.2f", price)
}

// Remaining is the time left before an invoice expires.
type Remaining struct {
	Minutes int
	Seconds int
	Expired bool
}

// String renders the remaining time as mm:ss.
func (r Remaining) String() string {
	if r.Expired {
		return "expired"
	}
	return fmt.Sprintf("%02d:%02d", r.Minutes, r.Seconds)
}

// TimeUntilExpiration returns how long remains until expiresAt (RFC 3339).
// Unparseable timestamps count as expired.
func TimeUntilExpiration(expiresAt string, now time.Time) Remaining {
	t, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return Remaining{Expired: true}
	}
	diff := t.Sub(now)
	if diff <= 0 {
		return Remaining{Expired: true}
	}
	return Remaining{
		Minutes: int(diff / time.Minute),
		Seconds: int((diff % time.Minute) / time.Second),
	}
}
