package steps

import (
	"context"

	"github.com/provisio/saga"
)

// InsertLicenseRowStep inserts a license row into the relational store,
// capturing the generated identifier for compensation. An unconfigured
// store (nil) is a valid degradation: the step records itself as skipped
// rather than failing.
type InsertLicenseRowStep struct {
	store          *LicenseStore
	customerID     string
	subscriptionID string
	licenseKey     string
	site           string

	// Captured during Forward, read-only during Compensate.
	insertedID int64
	inserted   bool
}

// InsertLicenseResult is the forward result of a license insert.
type InsertLicenseResult struct {
	ID      int64 `json:"id"`
	Skipped bool  `json:"skipped,omitempty"`
}

// NewInsertLicenseRow creates the step. Pass a nil store when no
// relational store is configured.
func NewInsertLicenseRow(store *LicenseStore, customerID, subscriptionID, licenseKey, site string) *InsertLicenseRowStep {
	return &InsertLicenseRowStep{
		store:          store,
		customerID:     customerID,
		subscriptionID: subscriptionID,
		licenseKey:     licenseKey,
		site:           site,
	}
}

// Type implements the saga.Step interface.
func (s *InsertLicenseRowStep) Type() saga.StepType {
	return saga.StepInsertLicenseRow
}

// Name implements the saga.Step interface.
func (s *InsertLicenseRowStep) Name() string {
	return string(saga.StepInsertLicenseRow)
}

// Params implements the saga.Step interface.
func (s *InsertLicenseRowStep) Params() saga.Params {
	return saga.Params{
		"customer":     s.customerID,
		"subscription": s.subscriptionID,
		"license_key":  s.licenseKey,
		"site":         s.site,
	}
}

// Forward inserts the row and captures its generated identifier, or
// records a skip when the store is not configured.
func (s *InsertLicenseRowStep) Forward(ctx context.Context, tx *saga.TxContext) (any, error) {
	if s.store == nil {
		return &InsertLicenseResult{Skipped: true}, nil
	}

	id, err := s.store.Insert(ctx, License{
		CustomerID:     s.customerID,
		SubscriptionID: s.subscriptionID,
		LicenseKey:     s.licenseKey,
		Site:           s.site,
	})
	if err != nil {
		return nil, err
	}

	s.insertedID = id
	s.inserted = true
	return &InsertLicenseResult{ID: id}, nil
}

// Compensate deletes the inserted row, a no-op when nothing was inserted.
func (s *InsertLicenseRowStep) Compensate(ctx context.Context) error {
	if !s.inserted {
		return nil
	}
	return s.store.Delete(ctx, s.insertedID)
}
