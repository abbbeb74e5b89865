package steps

import (
	"context"

	"github.com/provisio/saga"
)

// DeleteBillingItemStep removes a billing item. The item's full
// representation is fetched and captured before deletion so compensation
// can re-create it; if the fetch fails, compensation degrades to a no-op
// because unknown state cannot be restored.
type DeleteBillingItemStep struct {
	client *BillingClient
	itemID string

	// Captured during Forward; nil when the pre-delete fetch failed.
	original *BillingItem
}

// DeleteBillingItemResult is the forward result of a delete step.
type DeleteBillingItemResult struct {
	ItemID   string `json:"item_id"`
	Restored bool   `json:"restorable"`
}

// NewDeleteBillingItem creates the step.
func NewDeleteBillingItem(client *BillingClient, itemID string) *DeleteBillingItemStep {
	return &DeleteBillingItemStep{
		client: client,
		itemID: itemID,
	}
}

// Type implements the saga.Step interface.
func (s *DeleteBillingItemStep) Type() saga.StepType {
	return saga.StepDeleteBillingItem
}

// Name implements the saga.Step interface.
func (s *DeleteBillingItemStep) Name() string {
	return string(saga.StepDeleteBillingItem)
}

// Params implements the saga.Step interface.
func (s *DeleteBillingItemStep) Params() saga.Params {
	return saga.Params{"item": s.itemID}
}

// Forward fetches the existing item for later restoration, then deletes
// it. A failed fetch does not abort the deletion; it only forfeits the
// ability to compensate.
func (s *DeleteBillingItemStep) Forward(ctx context.Context, tx *saga.TxContext) (any, error) {
	original, err := s.client.GetItem(ctx, s.itemID)
	if err == nil {
		s.original = original
	}

	if err := s.client.DeleteItem(ctx, s.itemID); err != nil {
		return nil, err
	}

	return &DeleteBillingItemResult{
		ItemID:   s.itemID,
		Restored: s.original != nil,
	}, nil
}

// Compensate re-creates an item from the captured subscription, price,
// quantity, and site metadata. A no-op when the original could not be
// fetched.
func (s *DeleteBillingItemStep) Compensate(ctx context.Context) error {
	if s.original == nil {
		return nil
	}
	_, err := s.client.CreateItem(ctx, s.original.SubscriptionID, s.original.PriceID, s.original.Quantity, s.original.Metadata)
	return err
}
