// Package steps provides the concrete provisioning steps run by the saga
// engine: billing line items, user records, and license rows. Each step
// satisfies the saga.Step contract, capturing during Forward whatever
// pre-image it needs to Compensate later.
package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shopspring/decimal"
)

// BillingItem is the billing service's representation of a priced line
// item attached to a subscription.
type BillingItem struct {
	ID             string            `json:"id"`
	SubscriptionID string            `json:"subscription"`
	PriceID        string            `json:"price"`
	Quantity       int64             `json:"quantity"`
	UnitAmount     decimal.Decimal   `json:"unit_amount"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Site returns the site metadata attached to the item, if any.
func (i *BillingItem) Site() string {
	return i.Metadata["site"]
}

// APIResponse is the raw status and body of one billing API call.
type APIResponse struct {
	Status int
	Body   []byte
}

// BillingConfig configures a BillingClient.
type BillingConfig struct {
	// BaseURL is the billing API endpoint, e.g. "https://api.billing.example".
	BaseURL string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// HTTPClient overrides the default pooled client.
	HTTPClient *http.Client
}

// BillingClient talks to the external billing/payment service. Any
// response status >= 400 is reported as an error by the typed helpers.
type BillingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBillingClient creates a client for the configured billing API.
func NewBillingClient(config BillingConfig) *BillingClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &BillingClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: httpClient,
	}
}

// Do performs one billing API request with an optional url-encoded form
// body and returns the raw response. Statuses >= 400 are returned to the
// caller undisturbed; the typed helpers turn them into errors.
func (c *BillingClient) Do(ctx context.Context, method, path string, form url.Values) (*APIResponse, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("billing request %s %s: %w", method, path, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("billing response %s %s: %w", method, path, err)
	}

	return &APIResponse{Status: resp.StatusCode, Body: payload}, nil
}

// CreateItem attaches a priced item to a subscription with arbitrary
// metadata and returns the created item.
func (c *BillingClient) CreateItem(ctx context.Context, subscriptionID, priceID string, quantity int64, metadata map[string]string) (*BillingItem, error) {
	form := url.Values{}
	form.Set("subscription", subscriptionID)
	form.Set("price", priceID)
	form.Set("quantity", fmt.Sprintf("%d", quantity))
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/v1/subscription_items", form)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, apiError("create item", resp)
	}

	var item BillingItem
	if err := json.Unmarshal(resp.Body, &item); err != nil {
		return nil, fmt.Errorf("decode created item: %w", err)
	}
	return &item, nil
}

// GetItem fetches an item's full representation by identifier.
func (c *BillingClient) GetItem(ctx context.Context, itemID string) (*BillingItem, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/v1/subscription_items/"+url.PathEscape(itemID), nil)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, apiError("get item", resp)
	}

	var item BillingItem
	if err := json.Unmarshal(resp.Body, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return &item, nil
}

// DeleteItem removes an item by identifier.
func (c *BillingClient) DeleteItem(ctx context.Context, itemID string) error {
	resp, err := c.Do(ctx, http.MethodDelete, "/v1/subscription_items/"+url.PathEscape(itemID), nil)
	if err != nil {
		return err
	}
	if resp.Status >= 400 {
		return apiError("delete item", resp)
	}
	return nil
}

func apiError(op string, resp *APIResponse) error {
	body := string(resp.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("billing %s: status %d: %s", op, resp.Status, body)
}
