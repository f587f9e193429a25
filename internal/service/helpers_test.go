package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"movie-shop/internal/broker"
	"movie-shop/internal/models"
	"movie-shop/internal/payhero"
	"movie-shop/internal/store"

	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeNotifier struct {
	mu         sync.Mutex
	messages   []sentMessage
	deliveries []sentMessage
	alerts     []string
	deliverErr error
	notifyErr  error
	onNotify   func()
}

func (n *fakeNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	if n.onNotify != nil {
		n.onNotify()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, sentMessage{ChatID: chatID, Text: text})
	return n.notifyErr
}

func (n *fakeNotifier) DeliverContent(ctx context.Context, chatID int64, item *models.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.deliverErr != nil {
		return n.deliverErr
	}
	n.deliveries = append(n.deliveries, sentMessage{ChatID: chatID, Text: item.ContentRef})
	return nil
}

func (n *fakeNotifier) AlertOperator(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, text)
	return nil
}

type fakeGateway struct {
	requests   []payhero.StkRequest
	checkoutID string
	err        error
}

func (g *fakeGateway) Initiate(_ context.Context, req payhero.StkRequest) (string, error) {
	g.requests = append(g.requests, req)
	return g.checkoutID, g.err
}

var errSendFailed = errors.New("telegram: bad request")

type fixture struct {
	store      *store.Store
	registry   *IntentRegistry
	notifier   *fakeNotifier
	gateway    *fakeGateway
	reconciler *Reconciler
	checkout   *Checkout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewStore("sqlite3", filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	publisher := broker.NewEventPublisher(nil)
	registry := NewIntentRegistry(s)
	notifier := &fakeNotifier{}
	gateway := &fakeGateway{checkoutID: "ws_CO_1"}

	return &fixture{
		store:      s,
		registry:   registry,
		notifier:   notifier,
		gateway:    gateway,
		reconciler: NewReconciler(s, registry, notifier, publisher),
		checkout:   NewCheckout(s, registry, gateway, notifier, publisher),
	}
}

func (f *fixture) addItem(t *testing.T, item models.Item) {
	t.Helper()
	require.NoError(t, f.store.UpsertItem(context.Background(), &item, 0))
}

func (f *fixture) addIntent(t *testing.T, intent models.Intent) {
	t.Helper()
	if intent.Phone == "" {
		intent.Phone = "+254712345678"
	}
	require.NoError(t, f.registry.Create(context.Background(), &intent))
}
