package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(id, ownerID string, isDefault bool) *model.Account {
	return &model.Account{
		ID:        id,
		OwnerID:   ownerID,
		Name:      "acc " + id,
		Type:      model.AccountTypeChecking,
		Balance:   decimal.Zero,
		IsDefault: isDefault,
		IsActive:  true,
	}
}

func TestMemoryStore_InsertAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	acc := newAccount("", "u1", false)
	id, err := store.InsertAccount(ctx, acc)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)
	assert.False(t, got.CreatedAt.IsZero())

	// 返回的是副本
	got.Name = "changed"
	again, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "acc ", again.Name)

	_, err = store.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryStore_LastUpdatedOnlyOnEdit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	id, err := store.InsertAccount(ctx, newAccount("", "u1", true))
	require.NoError(t, err)
	inserted, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.True(t, inserted.LastUpdated.Equal(inserted.CreatedAt))

	require.NoError(t, store.UpdateAccount(ctx, id, model.DefaultFlag(false)))
	flagged, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.True(t, flagged.LastUpdated.Equal(inserted.LastUpdated))
	assert.True(t, flagged.UpdatedAt.After(inserted.UpdatedAt))

	name := "renamed"
	require.NoError(t, store.UpdateAccount(ctx, id, model.AccountPatch{Name: &name, Edited: true}))
	edited, err := store.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.True(t, edited.LastUpdated.Equal(edited.UpdatedAt))
	assert.True(t, edited.LastUpdated.After(flagged.UpdatedAt))

	assert.ErrorIs(t, store.UpdateAccount(ctx, id, model.AccountPatch{Edited: true}), ErrEmptyPatch)
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, a := range []*model.Account{
		newAccount("a", "u1", true),
		newAccount("b", "u1", false),
		newAccount("c", "u2", true),
	} {
		_, err := store.InsertAccount(ctx, a)
		require.NoError(t, err)
	}
	inactive := false
	require.NoError(t, store.UpdateAccount(ctx, "b", model.AccountPatch{IsActive: &inactive}))

	active, err := store.QueryAccounts(ctx, ActiveOf("u1"))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)

	isDefault := true
	defaults, err := store.QueryAccounts(ctx, AccountQuery{IsDefault: &isDefault})
	require.NoError(t, err)
	assert.Len(t, defaults, 2)
}

func TestMemoryStore_UpdateErrors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.UpdateAccount(ctx, "missing", model.DefaultFlag(true)), ErrAccountNotFound)
	assert.ErrorIs(t, store.UpdateAccount(ctx, "missing", model.AccountPatch{}), ErrEmptyPatch)
}

func TestMemoryStore_CommitIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.InsertAccount(ctx, newAccount("a", "u1", true))
	require.NoError(t, err)

	batch := NewBatch()
	batch.UpdateAccount("a", model.DefaultFlag(false))
	batch.InsertAccount(newAccount("b", "u1", true))
	batch.AddOutbox(&model.OutboxMessage{Topic: "t", MessageKey: "u1", Payload: "{}"})
	batch.UpdateAccount("missing", model.DefaultFlag(false))

	err = store.Commit(ctx, batch)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	a, err := store.GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	_, err = store.GetAccount(ctx, "b")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Empty(t, store.Messages())
}

func TestMemoryStore_CommitWritesOutbox(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	batch := NewBatch()
	batch.InsertAccount(newAccount("a", "u1", true))
	batch.AddOutbox(&model.OutboxMessage{Topic: "t", MessageKey: "u1", Payload: "1"})
	batch.AddOutbox(&model.OutboxMessage{Topic: "t", MessageKey: "u1", Payload: "2"})
	require.NoError(t, store.Commit(ctx, batch))

	pending, err := store.GetPendingMessages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "1", pending[0].Payload)
	assert.Equal(t, model.OutboxStatusPending, pending[0].Status)

	require.NoError(t, store.UpdateStatus(ctx, pending[0].ID, model.OutboxStatusSent))
	require.NoError(t, store.IncrementRetryCount(ctx, 2))
	require.NoError(t, store.MarkAsFailed(ctx, 2))

	pending, err = store.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	messages := store.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, model.OutboxStatusSent, messages[0].Status)
	assert.Equal(t, model.OutboxStatusFailed, messages[1].Status)
	assert.Equal(t, 1, messages[1].RetryCount)
}

func TestMemoryStore_InjectedErrors(t *testing.T) {
	store := NewMemoryStore()
	cause := errors.New("boom")
	store.SetError("Commit", cause)

	batch := NewBatch()
	batch.InsertAccount(newAccount("a", "u1", false))
	assert.ErrorIs(t, store.Commit(context.Background(), batch), cause)

	store.SetError("Commit", nil)
	assert.NoError(t, store.Commit(context.Background(), batch))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.QueryAccounts(ctx, ActiveOf("u1"))
	assert.ErrorIs(t, err, context.Canceled)
}
