package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/provisio/saga"
)

// UserRecord is the key-value store's representation of one customer.
type UserRecord map[string]any

// UserRecordTransform produces the updated record from the current one.
// The transform receives its own copy and may mutate it freely.
type UserRecordTransform func(record UserRecord) UserRecord

// userKey returns the store key for a customer's record.
func userKey(customerID string) string {
	return "user:" + customerID
}

// UpdateUserRecordStep reads a customer's record (synthesizing an empty
// one when none exists), applies a caller-supplied transformation, and
// writes the result back. The pre-transformation record is captured with
// an explicit presence flag so compensation can restore it exactly,
// including re-deleting a record that did not previously exist.
type UpdateUserRecordStep struct {
	store      saga.KVStore
	customerID string
	transform  UserRecordTransform

	// Captured during Forward, read-only during Compensate.
	preImage []byte
	existed  bool
	wrote    bool
}

// NewUpdateUserRecord creates the step.
func NewUpdateUserRecord(store saga.KVStore, customerID string, transform UserRecordTransform) *UpdateUserRecordStep {
	return &UpdateUserRecordStep{
		store:      store,
		customerID: customerID,
		transform:  transform,
	}
}

// Type implements the saga.Step interface.
func (s *UpdateUserRecordStep) Type() saga.StepType {
	return saga.StepUpdateUserRecord
}

// Name implements the saga.Step interface.
func (s *UpdateUserRecordStep) Name() string {
	return string(saga.StepUpdateUserRecord)
}

// Params implements the saga.Step interface.
func (s *UpdateUserRecordStep) Params() saga.Params {
	return saga.Params{"customer": s.customerID}
}

// Forward reads, transforms, and writes back the customer's record.
func (s *UpdateUserRecordStep) Forward(ctx context.Context, tx *saga.TxContext) (any, error) {
	key := userKey(s.customerID)

	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read user record %s: %w", s.customerID, err)
	}
	s.preImage = raw
	s.existed = found

	record := UserRecord{}
	if found {
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("decode user record %s: %w", s.customerID, err)
		}
	}

	updated := s.transform(record)
	encoded, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("encode user record %s: %w", s.customerID, err)
	}

	if err := s.store.Put(ctx, key, encoded, 0); err != nil {
		return nil, fmt.Errorf("write user record %s: %w", s.customerID, err)
	}
	s.wrote = true

	return updated, nil
}

// Compensate restores the captured pre-image: the prior bytes when the
// record existed, deletion when it did not. A no-op if Forward never wrote.
func (s *UpdateUserRecordStep) Compensate(ctx context.Context) error {
	if !s.wrote {
		return nil
	}

	key := userKey(s.customerID)
	if !s.existed {
		return s.store.Delete(ctx, key)
	}
	return s.store.Put(ctx, key, s.preImage, 0)
}
