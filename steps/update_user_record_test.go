package steps

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provisio/saga"
)

func readUserRecord(t *testing.T, store saga.KVStore, customerID string) (UserRecord, bool) {
	t.Helper()

	raw, found, err := store.Get(context.Background(), userKey(customerID))
	require.NoError(t, err)
	if !found {
		return nil, false
	}
	var record UserRecord
	require.NoError(t, json.Unmarshal(raw, &record))
	return record, true
}

func TestUpdateUserRecordExisting(t *testing.T) {
	ctx := context.Background()
	store := saga.NewMemoryStore()
	require.NoError(t, store.Put(ctx, userKey("cust_1"), []byte(`{"plan":"free","seats":1}`), 0))

	step := NewUpdateUserRecord(store, "cust_1", func(record UserRecord) UserRecord {
		record["plan"] = "pro"
		return record
	})

	result, err := step.Forward(ctx, nil)
	require.NoError(t, err)

	updated, ok := result.(UserRecord)
	require.True(t, ok)
	assert.Equal(t, "pro", updated["plan"])

	record, found := readUserRecord(t, store, "cust_1")
	require.True(t, found)
	assert.Equal(t, "pro", record["plan"])
	assert.Equal(t, float64(1), record["seats"], "untouched fields survive the transform")

	require.NoError(t, step.Compensate(ctx))
	record, found = readUserRecord(t, store, "cust_1")
	require.True(t, found)
	assert.Equal(t, "free", record["plan"], "compensation restores the byte-exact pre-image")
}

func TestUpdateUserRecordAbsentRecordIsDeletedOnCompensate(t *testing.T) {
	ctx := context.Background()
	store := saga.NewMemoryStore()

	step := NewUpdateUserRecord(store, "cust_new", func(record UserRecord) UserRecord {
		record["plan"] = "pro"
		return record
	})

	_, err := step.Forward(ctx, nil)
	require.NoError(t, err)

	_, found := readUserRecord(t, store, "cust_new")
	require.True(t, found, "an absent record is synthesized and written")

	require.NoError(t, step.Compensate(ctx))
	_, found = readUserRecord(t, store, "cust_new")
	assert.False(t, found, "a record that did not exist before is removed, not blanked")
}

func TestUpdateUserRecordCompensateWithoutWriteIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := saga.NewMemoryStore()
	require.NoError(t, store.Put(ctx, userKey("cust_1"), []byte(`not json`), 0))

	step := NewUpdateUserRecord(store, "cust_1", func(record UserRecord) UserRecord { return record })
	_, err := step.Forward(ctx, nil)
	require.Error(t, err, "a corrupt record fails the forward before any write")

	require.NoError(t, step.Compensate(ctx))
	raw, found, err := store.Get(ctx, userKey("cust_1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`not json`), raw, "compensation leaves the store untouched")
}

type failingKV struct {
	saga.KVStore
	failGet bool
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errors.New("kv unavailable")
	}
	return f.KVStore.Get(ctx, key)
}

func TestUpdateUserRecordReadFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingKV{KVStore: saga.NewMemoryStore(), failGet: true}

	step := NewUpdateUserRecord(store, "cust_1", func(record UserRecord) UserRecord { return record })
	_, err := step.Forward(ctx, nil)
	require.Error(t, err)
	assert.NoError(t, step.Compensate(ctx))
}
