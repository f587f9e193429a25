package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdater struct {
	ch      chan tgbotapi.Update
	config  tgbotapi.UpdateConfig
	stopped bool
}

func (u *fakeUpdater) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	u.config = config
	return u.ch
}

func (u *fakeUpdater) StopReceivingUpdates() {
	u.stopped = true
}

type recordingHandler struct {
	mu      sync.Mutex
	ids     []int
	panicOn int
}

func (h *recordingHandler) HandleUpdate(_ context.Context, update tgbotapi.Update) {
	h.mu.Lock()
	h.ids = append(h.ids, update.UpdateID)
	h.mu.Unlock()
	if update.UpdateID == h.panicOn {
		panic("boom")
	}
}

func (h *recordingHandler) seen() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.ids...)
}

func TestBotWorkerProcessesInOrder(t *testing.T) {
	updater := &fakeUpdater{ch: make(chan tgbotapi.Update, 3)}
	handler := &recordingHandler{panicOn: 2}
	w := NewBotWorker(updater, handler, 30*time.Second)

	for id := 1; id <= 3; id++ {
		updater.ch <- tgbotapi.Update{UpdateID: id}
	}
	close(updater.ch)

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, handler.seen())
	assert.Equal(t, 30, updater.config.Timeout)

	w.Stop()
	assert.True(t, updater.stopped)
}

func TestBotWorkerStopsOnCancel(t *testing.T) {
	updater := &fakeUpdater{ch: make(chan tgbotapi.Update)}
	w := NewBotWorker(updater, &recordingHandler{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type blockingHandler struct {
	started chan struct{}
	release chan struct{}
}

func (h *blockingHandler) HandleUpdate(_ context.Context, _ tgbotapi.Update) {
	close(h.started)
	<-h.release
}

func TestBotWorkerDoneWaitsForInFlightUpdate(t *testing.T) {
	updater := &fakeUpdater{ch: make(chan tgbotapi.Update, 1)}
	handler := &blockingHandler{started: make(chan struct{}), release: make(chan struct{})}
	w := NewBotWorker(updater, handler, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()

	updater.ch <- tgbotapi.Update{UpdateID: 1}
	<-handler.started
	cancel()
	w.Stop()

	select {
	case <-w.Done():
		t.Fatal("done before the update finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(handler.release)
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not finish")
	}
}
