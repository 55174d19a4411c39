package midtrans

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/learnhub/subscription-service/internal/domain"
	"github.com/learnhub/subscription-service/pkg/logger"
)

// GatewayName is the fixed name of the one integrated gateway
const GatewayName = "midtrans"

const (
	snapBaseURL        = "https://app.midtrans.com/snap/v1"
	snapSandboxBaseURL = "https://app.sandbox.midtrans.com/snap/v1"
	coreBaseURL        = "https://api.midtrans.com/v2"
	coreSandboxBaseURL = "https://api.sandbox.midtrans.com/v2"

	requestTimeout = 15 * time.Second
)

// Config holds the gateway credentials
type Config struct {
	ServerKey  string
	ClientKey  string
	Production bool
}

// Client talks to the Midtrans Snap and Core APIs
type Client struct {
	snapURL    string
	coreURL    string
	serverKey  string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Midtrans client
func NewClient(cfg Config, log *logger.Logger) *Client {
	snapURL := snapSandboxBaseURL
	coreURL := coreSandboxBaseURL
	if cfg.Production {
		snapURL = snapBaseURL
		coreURL = coreBaseURL
	}

	return &Client{
		snapURL:   snapURL,
		coreURL:   coreURL,
		serverKey: cfg.ServerKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		log: log,
	}
}

// ServerKey exposes the server key for notification signature checks
func (c *Client) ServerKey() string {
	return c.serverKey
}

// CreateTransaction creates a Snap transaction and returns the session
// token the client uses to complete payment. The raw response body is
// returned alongside so it can be stored verbatim for audit.
func (c *Client) CreateTransaction(ctx context.Context, snapReq SnapRequest) (*SnapResponse, []byte, error) {
	c.log.Debugw("Creating Snap transaction", "orderID", snapReq.TransactionDetails.OrderID)

	body, err := json.Marshal(snapReq)
	if err != nil {
		return nil, nil, fmt.Errorf("midtrans: failed to marshal snap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.snapURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("midtrans: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.serverKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Errorw("Snap transaction request failed", "error", err, "orderID", snapReq.TransactionDetails.OrderID)
		return nil, nil, domain.NewGatewayError(GatewayName, "", "create transaction request failed", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	var snapResp SnapResponse
	if err := json.NewDecoder(io.TeeReader(resp.Body, &buf)).Decode(&snapResp); err != nil {
		return nil, nil, domain.NewGatewayError(GatewayName, resp.Status, "failed to decode snap response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.Join(snapResp.ErrorMessages, "; ")
		c.log.Errorw("Snap transaction rejected", "status", resp.Status, "messages", msg, "orderID", snapReq.TransactionDetails.OrderID)
		return nil, nil, domain.NewGatewayError(GatewayName, resp.Status, msg, nil)
	}

	c.log.Infow("Snap transaction created", "orderID", snapReq.TransactionDetails.OrderID)
	return &snapResp, buf.Bytes(), nil
}

// TransactionStatus queries the Core API for the current transaction status
func (c *Client) TransactionStatus(ctx context.Context, orderID string) (*StatusResponse, error) {
	c.log.Debugw("Querying transaction status", "orderID", orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.coreURL+"/"+orderID+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("midtrans: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.serverKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Errorw("Status request failed", "error", err, "orderID", orderID)
		return nil, domain.NewGatewayError(GatewayName, "", "status request failed", err)
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, domain.NewGatewayError(GatewayName, resp.Status, "failed to decode status response", err)
	}

	if resp.StatusCode == http.StatusNotFound || status.StatusCode == "404" {
		return nil, domain.NewNotFoundError("transaction", orderID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewGatewayError(GatewayName, resp.Status, status.StatusMessage, nil)
	}

	return &status, nil
}
