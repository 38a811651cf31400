package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

const maxGatewayResponse = 1 << 20

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GatewayConfig describes a signed REST payment gateway.
type GatewayConfig struct {
	Name           string
	BaseURL        string
	AppID          string
	Secret         string
	RetryIntervals []time.Duration
}

// GatewayError is a non-retryable rejection from the gateway.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request: status %d: %s", e.StatusCode, e.Body)
}

// Gateway is a PaymentProvider speaking a JSON API signed with HMAC-SHA256.
// Every request carries X-App-Id, X-Timestamp and X-Signature, where the
// signature covers METHOD|PATH|TIMESTAMP|BODY. Payouts are keyed by order id
// on the gateway side, so transport failures and 5xx responses are retried.
type Gateway struct {
	cfg    GatewayConfig
	client HTTPClient
	now    func() time.Time
	log    zerolog.Logger
}

// NewGateway creates a gateway provider.
func NewGateway(cfg GatewayConfig, client HTTPClient, log zerolog.Logger) (*Gateway, error) {
	if cfg.Name == "" || cfg.BaseURL == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("gateway provider: name, base url and secret are required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("gateway provider: invalid base url: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{
		cfg:    cfg,
		client: client,
		now:    time.Now,
		log:    log.With().Str("provider", cfg.Name).Logger(),
	}, nil
}

func (g *Gateway) Name() string {
	return g.cfg.Name
}

func (g *Gateway) GetOpenID(ctx context.Context, code string) (string, error) {
	var out struct {
		OpenID string `json:"open_id"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/openid?code="+url.QueryEscape(code), nil, &out); err != nil {
		return "", err
	}
	if out.OpenID == "" {
		return "", fmt.Errorf("gateway %s: empty open id", g.cfg.Name)
	}
	return out.OpenID, nil
}

func (g *Gateway) CreateOrder(ctx context.Context, req ports.OrderRequest) (map[string]string, error) {
	in := map[string]string{
		"order_id": req.OrderID,
		"open_id":  req.OpenID,
		"amount":   req.Amount.String(),
		"subject":  req.Subject,
	}
	var out struct {
		Params map[string]string `json:"params"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/orders", in, &out); err != nil {
		return nil, err
	}
	return out.Params, nil
}

func (g *Gateway) QueryOrder(ctx context.Context, orderID string) (ports.OrderState, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return "", err
	}
	switch strings.ToUpper(out.State) {
	case "PAID", "SUCCESS":
		return ports.OrderStatePaid, nil
	case "CLOSED", "CANCELLED", "REFUNDED":
		return ports.OrderStateClosed, nil
	default:
		return ports.OrderStatePending, nil
	}
}

func (g *Gateway) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*ports.WithdrawReceipt, error) {
	in := map[string]string{
		"order_id": req.OrderID,
		"open_id":  req.OpenID,
		"amount":   req.Amount.String(),
		"note":     req.Note,
	}
	var out struct {
		TransactionID string    `json:"transaction_id"`
		PaidAt        time.Time `json:"paid_at"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/payouts", in, &out); err != nil {
		return nil, err
	}
	if out.TransactionID == "" {
		return nil, fmt.Errorf("gateway %s: payout %s returned no transaction id", g.cfg.Name, req.OrderID)
	}
	if out.PaidAt.IsZero() {
		out.PaidAt = g.now().UTC()
	}
	return &ports.WithdrawReceipt{ProviderTxID: out.TransactionID, PaidAt: out.PaidAt}, nil
}

// Sign computes the hex HMAC-SHA256 of the canonical request string.
func Sign(secret, method, path string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s|%d|", method, path, timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// call sends one signed request, retrying transport errors and 5xx responses.
func (g *Gateway) call(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("gateway %s: marshal request: %w", g.cfg.Name, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= len(g.cfg.RetryIntervals); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("gateway %s: %w (last error: %v)", g.cfg.Name, ctx.Err(), lastErr)
			case <-time.After(g.cfg.RetryIntervals[attempt-1]):
			}
		}

		respBody, status, err := g.send(ctx, method, path, body)
		if err != nil {
			g.log.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("gateway request failed")
			lastErr = err
			continue
		}
		if status >= 500 {
			g.log.Warn().Str("path", path).Int("attempt", attempt+1).Int("status", status).Msg("gateway 5xx response, retrying")
			lastErr = &GatewayError{StatusCode: status, Body: string(respBody)}
			continue
		}
		if status < 200 || status >= 300 {
			return &GatewayError{StatusCode: status, Body: string(respBody)}
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("gateway %s: decode response: %w", g.cfg.Name, err)
			}
		}
		return nil
	}

	return fmt.Errorf("gateway %s: all attempts failed: %w", g.cfg.Name, lastErr)
}

func (g *Gateway) send(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	ts := g.now().Unix()
	signPath := path
	if i := strings.IndexByte(signPath, '?'); i >= 0 {
		signPath = signPath[:i]
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", g.cfg.AppID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", Sign(g.cfg.Secret, method, signPath, ts, body))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayResponse))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
