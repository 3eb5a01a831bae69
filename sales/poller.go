package sales

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrPaymentTimeout is returned when a payment is not confirmed in time.
var ErrPaymentTimeout = errors.New("payment verification time limit reached")

var errPending = errors.New("payment pending")

// Payment polling defaults: fifteen minutes at ten second intervals.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollAttempts = 90
	// criticalAttempts is the attempt after which any error ends polling.
	criticalAttempts = 3
)

// CredentialFetcher fetches credentials for a payment.
type CredentialFetcher interface {
	Credentials(ctx context.Context, paymentID ID) (*Credentials, error)
}

// Attempt describes one poll for the observer.
type Attempt struct {
	Number int
	Max    int
	Err    error
}

// PaymentPoller waits for a payment to deliver credentials.
type PaymentPoller struct {
	fetcher     CredentialFetcher
	Interval    time.Duration
	MaxAttempts int
	logger      *zap.SugaredLogger
}

// NewPaymentPoller returns a poller with the default schedule.
func NewPaymentPoller(fetcher CredentialFetcher, logger *zap.SugaredLogger) *PaymentPoller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PaymentPoller{
		fetcher:     fetcher,
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultPollAttempts,
		logger:      logger.Named("payment"),
	}
}

// Poll checks immediately and then on every interval until the payment
// is completed with credentials, the attempt limit is reached, a critical
// error occurs or ctx is done. observe may be nil.
func (p *PaymentPoller) Poll(ctx context.Context, paymentID ID, observe func(Attempt)) (*Credentials, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollAttempts
	}

	var (
		attempt int
		result  *Credentials
	)
	operation := func() error {
		attempt++
		cr, err := p.fetcher.Credentials(ctx, paymentID)
		if observe != nil {
			observe(Attempt{Number: attempt, Max: maxAttempts, Err: err})
		}
		if err != nil {
			p.logger.Debugw("credentials check failed", "payment", paymentID, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if attempt >= criticalAttempts || isCritical(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if cr.Status == StatusCompleted && cr.HasLogin() {
			result = cr
			return nil
		}
		if attempt >= maxAttempts {
			return backoff.Permanent(ErrPaymentTimeout)
		}
		return errPending
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, b); err != nil {
		if errors.Is(err, errPending) {
			return nil, ErrPaymentTimeout
		}
		return nil, err
	}
	p.logger.Infow("payment confirmed", "payment", paymentID, "attempts", attempt)
	return result, nil
}

func isCritical(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusNotFound || se.Code == http.StatusUnauthorized
	}
	return false
}
