package saga

import (
	"context"
	"sort"
	"strings"
)

// StepType is the stable tag identifying what kind of work a step performs.
type StepType string

// Step types used by the provisioning step factories in the steps package.
// Callers may define their own types; the engine treats the tag as opaque.
const (
	StepCreateBillingItem StepType = "create-billing-item"
	StepDeleteBillingItem StepType = "delete-billing-item"
	StepUpdateUserRecord  StepType = "update-user-record"
	StepInsertLicenseRow  StepType = "insert-license-row"
)

// Params is the immutable key/value data identifying what a step operates
// on. It is fixed at step construction and never mutated afterwards.
type Params map[string]string

// Clone returns an independent copy of the params.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// canonical returns a deterministic "k=v,k=v" rendering with sorted keys,
// used for idempotency key derivation.
func (p Params) canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(p[k])
	}
	return sb.String()
}

// Step is a unit of work inside a transaction.
//
// Forward must be safe to invoke more than once: the engine's retrier may
// call it repeatedly before giving up, and two racing invocations of the
// same operation identifier may each run it. Implementations that talk to
// external systems therefore need idempotent forward semantics.
//
// Compensate undoes only the effect this same step instance produced,
// acting solely on state the step captured during Forward. It must be safe
// to call even if Forward partially failed.
type Step interface {
	// Type returns the step's stable type tag.
	Type() StepType

	// Name returns the step's unique name within a transaction. Step results
	// are published to the transaction context under this name.
	Name() string

	// Params returns the immutable parameters identifying what the step
	// operates on.
	Params() Params

	// Forward performs the step's work and returns its result. The
	// transaction context gives access to the results of earlier steps.
	Forward(ctx context.Context, tx *TxContext) (any, error)

	// Compensate reverses the effect of a completed Forward. Steps with no
	// side effect to undo return nil.
	Compensate(ctx context.Context) error
}
