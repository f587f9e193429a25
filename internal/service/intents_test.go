package service

import (
	"context"
	"testing"
	"time"

	"movie-shop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+254712345678", "+254712345678"},
		{"0712345678", "+254712345678"},
		{"0112345678", "+254112345678"},
		{"712345678", "+254712345678"},
		{"112345678", "+254112345678"},
		{"254712345678", "+254712345678"},
		{" 0712-345 678 ", "+254712345678"},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "+2547", "25471", "0812345678", "hello", "+1 555 0100", "12ab", "7abc", "+2547123456789", "07123x5678"} {
		_, err := NormalizePhone(bad)
		assert.ErrorIs(t, err, ErrInvalidPhone, bad)
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("50")
	require.NoError(t, err)
	assert.Equal(t, models.Money(5000), amount)

	amount, err = ParseAmount(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, models.Money(1250), amount)

	for _, bad := range []string{"0", "-3", "abc", "1.234", ""} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestNewReference(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.Equal(t, "TOPUP-1-1000", NewReference(models.IntentKindTopup, 1, "", now))
	assert.Equal(t, "PUR-1-m1-1000", NewReference(models.IntentKindPurchase, 1, "m1", now))
}

func TestRegistryLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Lookup(ctx, "TOPUP-1-1000")
	assert.ErrorIs(t, err, ErrIntentNotFound)

	f.addIntent(t, models.Intent{ExternalRef: "TOPUP-1-1000", ChatID: 1, Amount: 100, Kind: models.IntentKindTopup})

	err = f.registry.Create(ctx, &models.Intent{
		ExternalRef: "TOPUP-1-1000", ChatID: 2, Amount: 1, Kind: models.IntentKindTopup, Phone: "+254712345678",
	})
	assert.ErrorIs(t, err, ErrDuplicateReference)

	_, err = f.registry.Finalize(ctx, "TOPUP-1-1000", models.IntentStatusQueued)
	assert.ErrorIs(t, err, ErrNonTerminalStatus)

	changed, err := f.registry.Finalize(ctx, "TOPUP-1-1000", models.IntentStatusFailed)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.registry.Finalize(ctx, "TOPUP-1-1000", models.IntentStatusSuccess)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.registry.Finalize(ctx, "TOPUP-9-9", models.IntentStatusFailed)
	assert.ErrorIs(t, err, ErrIntentNotFound)

	intent, err := f.registry.Lookup(ctx, "TOPUP-1-1000")
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusFailed, intent.Status)
	assert.Equal(t, int64(1), intent.ChatID)
}
