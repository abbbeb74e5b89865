package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBillingItemForwardAndCompensate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeBillingServer(t)

	step := NewCreateBillingItem(fake.client(t), "sub_1", "price_1", "a.example", 0, map[string]string{"plan": "pro"})

	result, err := step.Forward(ctx, nil)
	require.NoError(t, err)

	item, ok := result.(*BillingItem)
	require.True(t, ok)
	assert.Equal(t, "item_1", item.ID)
	assert.Equal(t, int64(1), item.Quantity, "quantity defaults to 1")
	assert.Equal(t, "a.example", item.Metadata["site"])
	assert.Equal(t, "pro", item.Metadata["plan"])

	_, exists := fake.item(item.ID)
	require.True(t, exists)

	require.NoError(t, step.Compensate(ctx))
	_, exists = fake.item(item.ID)
	assert.False(t, exists, "compensation deletes exactly the created item")
}

func TestCreateBillingItemCompensateWithoutForward(t *testing.T) {
	fake := newFakeBillingServer(t)
	step := NewCreateBillingItem(fake.client(t), "sub_1", "price_1", "", 1, nil)

	assert.NoError(t, step.Compensate(context.Background()), "nothing created means nothing to undo")
}

func TestCreateBillingItemForwardFailureCapturesNothing(t *testing.T) {
	ctx := context.Background()
	fake := newFakeBillingServer(t)
	fake.setFailCreate(true)

	step := NewCreateBillingItem(fake.client(t), "sub_1", "price_1", "", 1, nil)
	_, err := step.Forward(ctx, nil)
	require.Error(t, err)

	fake.setFailCreate(false)
	assert.NoError(t, step.Compensate(ctx))
	assert.Equal(t, 0, fake.itemCount())
}

func TestDeleteBillingItemForwardAndCompensate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeBillingServer(t)
	client := fake.client(t)

	seeded, err := client.CreateItem(ctx, "sub_1", "price_1", 3, map[string]string{"site": "a.example"})
	require.NoError(t, err)

	step := NewDeleteBillingItem(client, seeded.ID)
	result, err := step.Forward(ctx, nil)
	require.NoError(t, err)

	deleteResult, ok := result.(*DeleteBillingItemResult)
	require.True(t, ok)
	assert.Equal(t, seeded.ID, deleteResult.ItemID)
	assert.True(t, deleteResult.Restored)
	assert.Equal(t, 0, fake.itemCount())

	require.NoError(t, step.Compensate(ctx))
	require.Equal(t, 1, fake.itemCount())

	restored, exists := fake.item("item_2")
	require.True(t, exists, "restoration creates a new item from the captured fields")
	assert.Equal(t, "sub_1", restored.SubscriptionID)
	assert.Equal(t, "price_1", restored.PriceID)
	assert.Equal(t, int64(3), restored.Quantity)
	assert.Equal(t, "a.example", restored.Site())
}

func TestDeleteBillingItemUnfetchableOriginal(t *testing.T) {
	ctx := context.Background()
	fake := newFakeBillingServer(t)
	client := fake.client(t)

	seeded, err := client.CreateItem(ctx, "sub_1", "price_1", 1, nil)
	require.NoError(t, err)

	fake.setFailGet(true)
	step := NewDeleteBillingItem(client, seeded.ID)
	result, err := step.Forward(ctx, nil)
	require.NoError(t, err, "a failed pre-delete fetch does not abort the deletion")

	deleteResult := result.(*DeleteBillingItemResult)
	assert.False(t, deleteResult.Restored)
	assert.Equal(t, 0, fake.itemCount())

	require.NoError(t, step.Compensate(ctx))
	assert.Equal(t, 0, fake.itemCount(), "unknown state is not restored")
}

func TestDeleteBillingItemForwardFailure(t *testing.T) {
	ctx := context.Background()
	fake := newFakeBillingServer(t)
	client := fake.client(t)

	seeded, err := client.CreateItem(ctx, "sub_1", "price_1", 1, nil)
	require.NoError(t, err)

	fake.setFailDelete(true)
	step := NewDeleteBillingItem(client, seeded.ID)
	_, err = step.Forward(ctx, nil)
	assert.Error(t, err)

	_, exists := fake.item(seeded.ID)
	assert.True(t, exists)
}
