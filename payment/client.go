package payment

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
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "adspace-cli/1.0"

var (
	ErrNotConfigured = errors.New("payment endpoint not configured")
	ErrUnavailable   = errors.New("payment service unavailable")
)

// ChargeRequest is one charge. IdempotencyKey travels as a header so a
// repeated request for the same booking is not charged twice.
type ChargeRequest struct {
	BookingID      string          `json:"booking_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"-"`
}

type ChargeResult struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

func (r ChargeResult) Succeeded() bool {
	return strings.EqualFold(r.Status, "succeeded")
}

// Client posts charges to the payment collaborator. Calls are rate limited
// and go through a circuit breaker; a declined charge is a result, not an
// error, and does not count against the breaker.
type Client struct {
	HTTP      *http.Client
	BaseURL   string
	UserAgent string

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, rps float64, logger logrus.FieldLogger) *Client {
	if rps <= 0 {
		rps = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
			}
		},
	})
	return &Client{
		HTTP:      &http.Client{Timeout: 15 * time.Second},
		BaseURL:   baseURL,
		UserAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		breaker:   breaker,
	}
}

func (c *Client) Charge(ctx context.Context, charge ChargeRequest) (ChargeResult, error) {
	if c.BaseURL == "" {
		return ChargeResult{}, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ChargeResult{}, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := json.Marshal(charge)
		if err != nil {
			return nil, err
		}
		req, err := c.newRequest(ctx, http.MethodPost, "/charges", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if charge.IdempotencyKey != "" {
			req.Header.Set("Idempotency-Key", charge.IdempotencyKey)
		}
		var result ChargeResult
		if err := c.doJSON(req, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ChargeResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ChargeResult{}, err
	}
	return out.(ChargeResult), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	path = strings.TrimPrefix(path, "/")
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + path

	req, err := http.NewRequestWithContext(ctx, method, base.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doJSON decodes a 2xx body into dest. A 402 carries a declined charge in its
// body; any other non-2xx status is an error.
func (c *Client) doJSON(req *http.Request, dest any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && err != io.EOF {
		return err
	}
	return nil
}
