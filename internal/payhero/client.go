// Package payhero is a client for the Payhero STK push API.
package payhero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"movie-shop/internal/models"
	"movie-shop/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	providerMpesa = "m-pesa"
	maxErrorBody  = 500
)

// ErrGateway is returned when the gateway rejects a request
var ErrGateway = errors.New("payment gateway error")

// StatusError carries the gateway response of a rejected request
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("payhero returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrGateway) hold
func (e *StatusError) Unwrap() error {
	return ErrGateway
}

// StkRequest describes an STK push to initiate
type StkRequest struct {
	Amount       models.Money
	Phone        string
	Reference    string
	CustomerName string
}

type stkBody struct {
	Amount            json.Number `json:"amount"`
	PhoneNumber       string      `json:"phone_number"`
	ChannelID         int         `json:"channel_id"`
	Provider          string      `json:"provider"`
	ExternalReference string      `json:"external_reference"`
	CustomerName      string      `json:"customer_name"`
	CallbackURL       string      `json:"callback_url"`
}

type stkResponse struct {
	Success           bool   `json:"success"`
	Status            string `json:"status"`
	Reference         string `json:"reference"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// Config holds the gateway credentials
type Config struct {
	APIURL      string
	Username    string
	Password    string
	ChannelID   int
	CallbackURL string
	Timeout     time.Duration
}

// Client initiates STK pushes
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a new Payhero client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: util.GetLogger(),
	}
}

// Initiate sends an STK push and returns the gateway checkout request id.
// Only 200 and 201 count as accepted.
func (c *Client) Initiate(ctx context.Context, req StkRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "payhero.Initiate")
	defer span.End()
	span.SetAttributes(attribute.String("external_ref", req.Reference))

	body, err := json.Marshal(stkBody{
		Amount:            json.Number(req.Amount.Decimal().String()),
		PhoneNumber:       req.Phone,
		ChannelID:         c.cfg.ChannelID,
		Provider:          providerMpesa,
		ExternalReference: req.Reference,
		CustomerName:      req.CustomerName,
		CallbackURL:       c.cfg.CallbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	util.GatewayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("payhero request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := &StatusError{StatusCode: resp.StatusCode, Body: util.Excerpt(string(respBody), maxErrorBody)}
		span.RecordError(err)
		return "", err
	}

	var parsed stkResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// accepted but unreadable; the callback still carries the reference
		c.logger.Warn("Unreadable payhero response",
			zap.String("external_ref", req.Reference),
			zap.String("body", util.Excerpt(string(respBody), maxErrorBody)))
		return "", nil
	}
	if parsed.CheckoutRequestID == "" {
		c.logger.Warn("Payhero response without checkout request id",
			zap.String("external_ref", req.Reference),
			zap.Bool("success", parsed.Success),
			zap.String("status", parsed.Status),
			zap.String("reference", parsed.Reference))
	}
	return parsed.CheckoutRequestID, nil
}
