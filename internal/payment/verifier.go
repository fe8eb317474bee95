// Package payment verifies externally issued purchase receipts against the
// payment provider's transaction ledger. It is queried server-side only; a
// client-asserted receipt is never trusted without this check.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fitcomp/internal/config"
)

// Verifier checks a purchase receipt for a user. Implementations must be
// safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, userID, transactionID, productID string) (bool, error)
}

// Client is an HTTP Verifier against a RevenueCat-style subscriber API.
type Client struct {
	baseURL       string
	apiKey        string
	recencyWindow time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a payment verifier client. The configured timeout bounds
// every verification call; a slow provider surfaces as a retryable failure,
// never an indefinite hang.
func NewClient(cfg *config.PaymentConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		recencyWindow: cfg.RecencyWindow,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
	}
}

// transaction is one entry of the provider's per-subscriber ledger.
type transaction struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}

type subscriberResponse struct {
	Transactions []transaction `json:"transactions"`
}

// Verify checks that the subscriber's recent transactions contain a purchase
// of productID matching transactionID. A transaction matches on exact id, or
// on any purchase of the product inside the recency window. The loose
// fallback absorbs id-format drift between client SDK and processor; it also
// means a receipt is not bound to one specific request, an accepted tradeoff
// for a low-value fee.
func (c *Client) Verify(ctx context.Context, userID, transactionID, productID string) (bool, error) {
	url := fmt.Sprintf("%s/subscribers/%s/transactions?product_id=%s", c.baseURL, userID, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("building verification request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("querying payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var body subscriberResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decoding provider response: %w", err)
	}

	cutoff := time.Now().Add(-c.recencyWindow)
	for _, tx := range body.Transactions {
		if tx.ProductID != productID {
			continue
		}
		if tx.ID == transactionID {
			return true, nil
		}
		if tx.PurchasedAt.After(cutoff) {
			c.logger.Warn("accepting receipt on recency-window match",
				"user_id", userID,
				"supplied_transaction_id", transactionID,
				"matched_transaction_id", tx.ID,
			)
			return true, nil
		}
	}

	return false, nil
}
