package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"movie-shop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newIntent(ref string, chatID int64, kind string, amount models.Money) *models.Intent {
	return &models.Intent{
		ExternalRef: ref,
		ChatID:      chatID,
		Amount:      amount,
		Kind:        kind,
		Phone:       "+254712345678",
		CheckoutID:  sql.NullString{String: "ws_CO_1", Valid: true},
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestBalanceUnknownAccountIsZero(t *testing.T) {
	s := newTestStore(t)

	balance, err := s.GetBalance(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, models.Money(0), balance)

	_, err = s.GetAccount(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreditAndCharge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	balance, err := s.Credit(ctx, 1, 1500)
	require.NoError(t, err)
	assert.Equal(t, models.Money(1500), balance)

	ok, err := s.Charge(ctx, 1, 1000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Charge(ctx, 1, 1000)
	require.NoError(t, err)
	assert.False(t, ok, "charge beyond the balance must be rejected")

	balance, err = s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Money(500), balance)
}

func TestChargeRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Credit(ctx, 7, 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Charge(ctx, 7, 1000)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0] != results[1], "exactly one charge must succeed")

	balance, err := s.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.Money(0), balance)
}

func TestChargeForPurchaseRecordsPurchase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Credit(ctx, 3, 500)
	require.NoError(t, err)

	ok, err := s.ChargeForPurchase(ctx, 3, "m1", 500)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ChargeForPurchase(ctx, 3, "m1", 500)
	require.NoError(t, err)
	assert.False(t, ok)

	purchases, err := s.ListPurchases(ctx, 3, 50)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, models.PurchaseMethodBalance, purchases[0].Method)
	assert.Equal(t, "m1", purchases[0].ItemID.String)
	assert.False(t, purchases[0].ExternalRef.Valid)
}

func TestDebitClampsAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Credit(ctx, 4, 300)
	require.NoError(t, err)

	balance, err := s.Debit(ctx, 4, 100)
	require.NoError(t, err)
	assert.Equal(t, models.Money(200), balance)

	balance, err = s.Debit(ctx, 4, 1000)
	require.NoError(t, err)
	assert.Equal(t, models.Money(0), balance)
}

func TestItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertItem(ctx, &models.Item{ID: "b", Title: "Second", Price: 500, ContentRef: "f2"}, 2))
	require.NoError(t, s.UpsertItem(ctx, &models.Item{ID: "a", Title: "First", Price: 1000, ContentRef: "f1"}, 1))
	require.NoError(t, s.UpsertItem(ctx, &models.Item{ID: "b", Title: "Second (remastered)", Price: 700, ContentRef: "f2"}, 2))

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "Second (remastered)", items[1].Title)
	assert.Equal(t, models.Money(700), items[1].Price)

	_, err = s.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateIntentRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIntent(ctx, newIntent("TOPUP-1-1000", 1, models.IntentKindTopup, 5000)))

	err := s.CreateIntent(ctx, newIntent("TOPUP-1-1000", 2, models.IntentKindTopup, 100))
	assert.ErrorIs(t, err, ErrDuplicateReference)

	intent, err := s.GetIntent(ctx, "TOPUP-1-1000")
	require.NoError(t, err)
	assert.Equal(t, int64(1), intent.ChatID, "original intent must not be overwritten")
	assert.Equal(t, models.IntentStatusQueued, intent.Status)
}

func TestTransitionIntentOnlyFromQueued(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIntent(ctx, newIntent("PUR-1-m1-1000", 1, models.IntentKindPurchase, 500)))

	changed, err := s.TransitionIntent(ctx, "PUR-1-m1-1000", models.IntentStatusFailed)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.TransitionIntent(ctx, "PUR-1-m1-1000", models.IntentStatusSuccess)
	require.NoError(t, err)
	assert.False(t, changed)

	intent, err := s.GetIntent(ctx, "PUR-1-m1-1000")
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusFailed, intent.Status)
	assert.True(t, intent.FinalizedAt.Valid)
}

func TestSettleTopupAppliesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIntent(ctx, newIntent("TOPUP-1-1000", 1, models.IntentKindTopup, 5000)))

	first, err := s.SettleTopup(ctx, "TOPUP-1-1000")
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, models.Money(0), first.PreviousBalance)
	assert.Equal(t, models.Money(5000), first.NewBalance)

	second, err := s.SettleTopup(ctx, "TOPUP-1-1000")
	require.NoError(t, err)
	assert.False(t, second.Applied)

	balance, err := s.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Money(5000), balance)

	n, err := s.CountPurchasesByRef(ctx, "TOPUP-1-1000")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSettleTopupConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIntent(ctx, newIntent("TOPUP-2-1000", 2, models.IntentKindTopup, 2500)))

	var wg sync.WaitGroup
	applied := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := s.SettleTopup(ctx, "TOPUP-2-1000")
			if assert.NoError(t, err) {
				applied <- st.Applied
			}
		}()
	}
	wg.Wait()
	close(applied)

	count := 0
	for a := range applied {
		if a {
			count++
		}
	}
	assert.Equal(t, 1, count)

	balance, err := s.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.Money(2500), balance)
}

func TestSettleUnknownIntent(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SettleTopup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SettlePurchase(context.Background(), "nope", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettlePurchaseWithoutDelivery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	intent := newIntent("PUR-5-m9-1000", 5, models.IntentKindPurchase, 500)
	intent.ItemID = sql.NullString{String: "m9", Valid: true}
	require.NoError(t, s.CreateIntent(ctx, intent))

	st, err := s.SettlePurchase(ctx, "PUR-5-m9-1000", false)
	require.NoError(t, err)
	assert.True(t, st.Applied)

	n, err := s.CountPurchasesByRef(ctx, "PUR-5-m9-1000")
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.GetIntent(ctx, "PUR-5-m9-1000")
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusSuccess, got.Status)
}

func TestConversationState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.GetConversation(ctx, 8)
	require.NoError(t, err)
	assert.True(t, conv.IsIdle())

	want := models.Conversation{Step: models.StepTopupPhone, Amount: 5000}
	require.NoError(t, s.SetConversation(ctx, 8, want))

	conv, err = s.GetConversation(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, want, conv)

	require.NoError(t, s.ClearConversation(ctx, 8))
	conv, err = s.GetConversation(ctx, 8)
	require.NoError(t, err)
	assert.True(t, conv.IsIdle())
}

func TestRecentIntents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := newIntent("TOPUP-1-1", 1, models.IntentKindTopup, 100)
	older.CreatedAt = 1
	newer := newIntent("TOPUP-1-2", 1, models.IntentKindTopup, 100)
	newer.CreatedAt = 2
	require.NoError(t, s.CreateIntent(ctx, older))
	require.NoError(t, s.CreateIntent(ctx, newer))

	intents, err := s.ListRecentIntents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, intents, 2)
	assert.Equal(t, "TOPUP-1-2", intents[0].ExternalRef)
}
