package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultRequestTimeout = 10 * time.Second
)

// RedirectConfig задаёт параметры redirect-шлюза FastPay.
type RedirectConfig struct {
	BaseURL     string
	MerchantID  string
	CallbackURL string
	Timeout     time.Duration
}

// RedirectGateway — HTTP-клиент автоматического redirect-шлюза: создаёт
// платёжную сессию и проверяет её исход по authority. Никогда не трогает
// хранилище — только сеть.
type RedirectGateway struct {
	cfg    RedirectConfig
	client *http.Client
	logger *log.Entry
}

// NewRedirectGateway создаёт клиент redirect-шлюза.
func NewRedirectGateway(cfg RedirectConfig, logger *log.Entry) *RedirectGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "gateway.fastpay")
	}
	return &RedirectGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Kind возвращает вид шлюза.
func (g *RedirectGateway) Kind() domain.GatewayKind { return domain.GatewayFastPay }

type sessionRequest struct {
	MerchantID  string `json:"merchant_id"`
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url"`
	Description string `json:"description"`
}

type sessionResponse struct {
	OK          bool   `json:"ok"`
	RedirectURL string `json:"redirect_url"`
	Authority   string `json:"authority"`
	ErrorCode   string `json:"error_code"`
}

type verifyRequest struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
}

type verifyResponse struct {
	OK          bool   `json:"ok"`
	Confirmed   bool   `json:"confirmed"`
	AmountMinor int64  `json:"amount_minor"`
	ReferenceID string `json:"reference_id"`
	ErrorCode   string `json:"error_code"`
}

// Request создаёт платёжную сессию и возвращает redirect URL с authority.
func (g *RedirectGateway) Request(ctx context.Context, order domain.Order) (domain.GatewayRequestResult, error) {
	payload := sessionRequest{
		MerchantID:  g.cfg.MerchantID,
		OrderID:     order.ID,
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		CallbackURL: g.cfg.CallbackURL,
		Description: fmt.Sprintf("order %s", order.ID),
	}

	var resp sessionResponse
	if err := g.post(ctx, "/v1/sessions", payload, &resp); err != nil {
		return domain.GatewayRequestResult{}, &domain.GatewayError{
			Gateway: g.Kind(), Op: "request", Reason: "transport", Err: err,
		}
	}
	if !resp.OK || resp.Authority == "" {
		g.logger.WithFields(log.Fields{
			"order_id":   order.ID,
			"error_code": resp.ErrorCode,
		}).Warn("шлюз отклонил создание платёжной сессии")
		return domain.GatewayRequestResult{}, &domain.GatewayError{
			Gateway: g.Kind(), Op: "request", Reason: resp.ErrorCode,
		}
	}

	return domain.GatewayRequestResult{
		RedirectURL: resp.RedirectURL,
		Authority:   resp.Authority,
	}, nil
}

// Verify запрашивает у шлюза исход платежа по authority.
// Confirmed=false без ошибки означает штатный отказ плательщика.
func (g *RedirectGateway) Verify(ctx context.Context, payment domain.Payment, authority string) (domain.GatewayVerifyResult, error) {
	payload := verifyRequest{
		MerchantID: g.cfg.MerchantID,
		Authority:  authority,
	}

	var resp verifyResponse
	if err := g.post(ctx, "/v1/verify", payload, &resp); err != nil {
		return domain.GatewayVerifyResult{}, &domain.GatewayError{
			Gateway: g.Kind(), Op: "verify", Reason: "transport", Err: err,
		}
	}
	if !resp.OK {
		g.logger.WithFields(log.Fields{
			"payment_id": payment.ID,
			"error_code": resp.ErrorCode,
		}).Warn("шлюз не смог проверить платёж")
		return domain.GatewayVerifyResult{}, &domain.GatewayError{
			Gateway: g.Kind(), Op: "verify", Reason: resp.ErrorCode,
		}
	}

	return domain.GatewayVerifyResult{
		Confirmed:          resp.Confirmed,
		SettledAmountMinor: resp.AmountMinor,
		ReferenceID:        resp.ReferenceID,
	}, nil
}

func (g *RedirectGateway) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

var _ domain.PaymentGateway = (*RedirectGateway)(nil)
