// Package payments implements the HTTP client for the payment provider's
// API, used by the webhook handler to resolve event details.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"psibuilder/internal/config"
)

// Client resolves provider-side subscription and payment details by id.
type Client interface {
	GetSubscription(ctx context.Context, id string) (*SubscriptionDetails, error)
	GetPayment(ctx context.Context, id string) (*PaymentDetails, error)
}

// SubscriptionDetails is a provider preapproval record.
type SubscriptionDetails struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	PayerEmail        string `json:"payer_email"`
	ExternalReference string `json:"external_reference"`
	Reason            string `json:"reason"`
}

// PaymentDetails is a provider payment record.
type PaymentDetails struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`

	// Metadata carries the preapproval id on subscription charges.
	Metadata struct {
		PreapprovalID string `json:"preapproval_id"`
	} `json:"metadata"`
}

// HTTPClient talks to the provider REST API with a bearer token.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a provider client from configuration.
func NewClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.PaymentAPIBaseURL,
		token:   cfg.PaymentAccessToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var _ Client = (*HTTPClient)(nil)

// GetSubscription fetches a preapproval record by id.
func (c *HTTPClient) GetSubscription(ctx context.Context, id string) (*SubscriptionDetails, error) {
	var details SubscriptionDetails
	if err := c.get(ctx, fmt.Sprintf("/preapproval/%s", id), &details); err != nil {
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", id, err)
	}
	return &details, nil
}

// GetPayment fetches a payment record by id.
func (c *HTTPClient) GetPayment(ctx context.Context, id string) (*PaymentDetails, error) {
	var details PaymentDetails
	if err := c.get(ctx, fmt.Sprintf("/v1/payments/%s", id), &details); err != nil {
		return nil, fmt.Errorf("failed to fetch payment %s: %w", id, err)
	}
	return &details, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}
