package saga

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyTTL is how long a completed operation's record is retained.
// A repeat of the same operation identifier inside this window is answered
// from the record instead of being re-executed.
const IdempotencyTTL = 24 * time.Hour

const idempotencyKeyPrefix = "idempotency:"

// IdempotencyRecord is the persisted outcome of a successfully completed
// operation. It is written at most once per operation identifier and is
// immutable after write; two racing writers would store the same logical
// outcome.
type IdempotencyRecord struct {
	OperationID string          `json:"operation_id"`
	Result      json.RawMessage `json:"result,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// idempotencyGate short-circuits transactions whose operation identifier
// already reached a terminal successful outcome.
type idempotencyGate struct {
	store KVStore
	ttl   time.Duration
}

func newIdempotencyGate(store KVStore, ttl time.Duration) *idempotencyGate {
	if ttl <= 0 {
		ttl = IdempotencyTTL
	}
	return &idempotencyGate{store: store, ttl: ttl}
}

// Lookup returns the record for operationID, if one exists.
func (g *idempotencyGate) Lookup(ctx context.Context, operationID string) (*IdempotencyRecord, bool, error) {
	raw, found, err := g.store.Get(ctx, idempotencyKeyPrefix+operationID)
	if err != nil {
		return nil, false, &GateError{OperationID: operationID, Op: "lookup", Err: err}
	}
	if !found {
		return nil, false, nil
	}

	var record IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, &GateError{OperationID: operationID, Op: "lookup", Err: fmt.Errorf("corrupt record: %w", err)}
	}
	return &record, true, nil
}

// Persist writes the terminal record for operationID with the gate's TTL.
func (g *idempotencyGate) Persist(ctx context.Context, operationID string, result any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return &GateError{OperationID: operationID, Op: "persist", Err: fmt.Errorf("encode result: %w", err)}
	}

	record := IdempotencyRecord{
		OperationID: operationID,
		Result:      encoded,
		CompletedAt: time.Now(),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return &GateError{OperationID: operationID, Op: "persist", Err: err}
	}

	if err := g.store.Put(ctx, idempotencyKeyPrefix+operationID, raw, g.ttl); err != nil {
		return &GateError{OperationID: operationID, Op: "persist", Err: err}
	}
	return nil
}

// NewOperationID generates a fresh operation identifier. Callers retrying
// a request must reuse the identifier from the first attempt, not generate
// a new one, or the idempotency gate cannot deduplicate them.
func NewOperationID() string {
	return uuid.NewString()
}

// DeriveOperationID computes a stable operation identifier from a step
// type and its parameters, for callers that have no natural request
// identifier of their own. The full-width SHA-256 digest is used; callers
// that can supply their own stable identifier should prefer doing so.
func DeriveOperationID(stepType StepType, params Params) string {
	h := sha256.New()
	h.Write([]byte(stepType))
	h.Write([]byte{0})
	h.Write([]byte(params.canonical()))
	return hex.EncodeToString(h.Sum(nil))
}
