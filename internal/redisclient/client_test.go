package redisclient

import (
	"context"
	"testing"
	"time"

	"pos-checkout/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingSettlementGuard(t *testing.T) {
	t.Skip("Integration test - requires redis")

	client, err := NewClient("localhost:6379", "", 0, time.Minute)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	p := &models.PendingSettlement{
		Reference:   "1-20240101120000-abcd",
		SessionID:   "session-1",
		Items:       []models.SettlementItem{{ProductID: 1, Quantity: 2}},
		Total:       decimal.NewFromInt(450),
		PaymentType: models.PaymentTypeOnline,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, client.SavePending(ctx, p))

	loaded, err := client.LoadPending(ctx, p.Reference)
	require.NoError(t, err)
	assert.True(t, loaded.Total.Equal(p.Total))

	claimed, err := client.ClaimGuard(ctx, p.Reference)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = client.ClaimGuard(ctx, p.Reference)
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.ErrorIs(t, client.SavePending(ctx, p), models.ErrAlreadyExists)
	claimed, err = client.ClaimGuard(ctx, p.Reference)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, client.DeletePending(ctx, p.Reference))
	_, err = client.LoadPending(ctx, p.Reference)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = client.ClaimGuard(ctx, p.Reference)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "pending:REF", pendingKey("REF"))
	assert.Equal(t, "pending:REF:guard", guardKey("REF"))
	assert.NotEmpty(t, claimSettlementScript)
}
