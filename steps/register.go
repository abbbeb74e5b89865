package steps

import (
	"fmt"
	"strconv"

	"github.com/provisio/saga"
)

// RegisterProvisioningSteps registers factories for the four provisioning
// step types, so pipelines can be assembled declaratively from
// saga.StepSpec values. The license store may be nil when no relational
// store is configured.
func RegisterProvisioningSteps(registry *saga.Registry, client *BillingClient, kv saga.KVStore, licenses *LicenseStore) error {
	err := registry.Register(saga.StepCreateBillingItem, func(params saga.Params) (saga.Step, error) {
		if err := requireParams(params, "subscription", "price"); err != nil {
			return nil, err
		}
		quantity := int64(1)
		if raw, ok := params["quantity"]; ok {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid quantity %q: %w", raw, err)
			}
			quantity = parsed
		}
		return NewCreateBillingItem(client, params["subscription"], params["price"], params["site"], quantity, nil), nil
	})
	if err != nil {
		return err
	}

	err = registry.Register(saga.StepDeleteBillingItem, func(params saga.Params) (saga.Step, error) {
		if err := requireParams(params, "item"); err != nil {
			return nil, err
		}
		return NewDeleteBillingItem(client, params["item"]), nil
	})
	if err != nil {
		return err
	}

	err = registry.Register(saga.StepUpdateUserRecord, func(params saga.Params) (saga.Step, error) {
		if err := requireParams(params, "customer"); err != nil {
			return nil, err
		}
		customerID := params["customer"]
		// Remaining params become fields on the record.
		fields := params.Clone()
		delete(fields, "customer")
		transform := func(record UserRecord) UserRecord {
			for k, v := range fields {
				record[k] = v
			}
			return record
		}
		return NewUpdateUserRecord(kv, customerID, transform), nil
	})
	if err != nil {
		return err
	}

	return registry.Register(saga.StepInsertLicenseRow, func(params saga.Params) (saga.Step, error) {
		if err := requireParams(params, "customer", "subscription", "license_key"); err != nil {
			return nil, err
		}
		return NewInsertLicenseRow(licenses, params["customer"], params["subscription"], params["license_key"], params["site"]), nil
	})
}

func requireParams(params saga.Params, keys ...string) error {
	for _, key := range keys {
		if params[key] == "" {
			return fmt.Errorf("missing required param %q", key)
		}
	}
	return nil
}
