package steps

import (
	"context"

	"github.com/provisio/saga"
)

// CreateBillingItemStep attaches a priced item to a subscription. The
// created item's identifier is captured so compensation can delete exactly
// the item this step produced.
type CreateBillingItemStep struct {
	client         *BillingClient
	subscriptionID string
	priceID        string
	site           string
	quantity       int64
	metadata       map[string]string

	// Captured during Forward, read-only during Compensate.
	createdItemID string
}

// NewCreateBillingItem creates the step. Site is recorded in the item's
// metadata alongside any extra metadata supplied.
func NewCreateBillingItem(client *BillingClient, subscriptionID, priceID, site string, quantity int64, metadata map[string]string) *CreateBillingItemStep {
	return &CreateBillingItemStep{
		client:         client,
		subscriptionID: subscriptionID,
		priceID:        priceID,
		site:           site,
		quantity:       quantity,
		metadata:       metadata,
	}
}

// Type implements the saga.Step interface.
func (s *CreateBillingItemStep) Type() saga.StepType {
	return saga.StepCreateBillingItem
}

// Name implements the saga.Step interface.
func (s *CreateBillingItemStep) Name() string {
	return string(saga.StepCreateBillingItem)
}

// Params implements the saga.Step interface.
func (s *CreateBillingItemStep) Params() saga.Params {
	return saga.Params{
		"subscription": s.subscriptionID,
		"price":        s.priceID,
		"site":         s.site,
	}
}

// Forward calls the billing API to create the item and captures its
// identifier.
func (s *CreateBillingItemStep) Forward(ctx context.Context, tx *saga.TxContext) (any, error) {
	metadata := make(map[string]string, len(s.metadata)+1)
	for k, v := range s.metadata {
		metadata[k] = v
	}
	if s.site != "" {
		metadata["site"] = s.site
	}

	quantity := s.quantity
	if quantity <= 0 {
		quantity = 1
	}

	item, err := s.client.CreateItem(ctx, s.subscriptionID, s.priceID, quantity, metadata)
	if err != nil {
		return nil, err
	}

	s.createdItemID = item.ID
	return item, nil
}

// Compensate deletes the item created by Forward, a no-op if none was
// created.
func (s *CreateBillingItemStep) Compensate(ctx context.Context) error {
	if s.createdItemID == "" {
		return nil
	}
	return s.client.DeleteItem(ctx, s.createdItemID)
}
