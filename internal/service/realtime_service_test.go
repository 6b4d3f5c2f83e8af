package service

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/repository/contract"
	repomem "doc-sync-engine/internal/repository/memory"
	"doc-sync-engine/pkg/clock"
	"doc-sync-engine/pkg/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	handler  realtime.Handler
	closed   bool
	unsubbed bool
}

func (t *fakeTransport) Subscribe(subject string, h realtime.Handler) (realtime.Unsubscribe, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.unsubbed = true
	}, nil
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *fakeTransport) Push(data []byte) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	h(data)
}

type fakeFactory struct {
	mu         sync.Mutex
	failures   int
	attempts   int
	transports []*fakeTransport
}

func (f *fakeFactory) build() (realtime.ISubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return nil, errors.New("dial failed")
	}
	tr := &fakeTransport{}
	f.transports = append(f.transports, tr)
	return tr, nil
}

func (f *fakeFactory) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeFactory) Current() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		return nil
	}
	return f.transports[len(f.transports)-1]
}

type fakeSink struct {
	mu        sync.Mutex
	openId    uuid.UUID
	hasOpen   bool
	events    []entity.RealtimeEvent
	recovered int
}

func (s *fakeSink) HandleRemoteEvent(evt entity.RealtimeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *fakeSink) OpenDocumentId() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openId, s.hasOpen
}

func (s *fakeSink) OnRealtimeRecovered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovered++
}

func (s *fakeSink) Events() []entity.RealtimeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.RealtimeEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *fakeSink) Recovered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovered
}

type realtimeHarness struct {
	clk      *clock.Fake
	factory  *fakeFactory
	cache    contract.DocumentCache
	sink     *fakeSink
	status   IStatusService
	notifier *recordingNotifier
	svc      IRealtimeService
}

func newRealtimeHarness(t *testing.T, factory *fakeFactory) *realtimeHarness {
	t.Helper()
	h := &realtimeHarness{
		clk:      clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		factory:  factory,
		cache:    repomem.NewDocumentCache(),
		sink:     &fakeSink{},
		notifier: &recordingNotifier{},
	}
	h.status = NewStatusService(testLogger{})
	h.svc = NewRealtimeService(
		factory.build,
		h.clk,
		testLogger{},
		config.RealtimeConfig{
			Subject:              "documents.>",
			HealthWindow:         90 * time.Second,
			ReconnectDelay:       5 * time.Second,
			MaxReconnectAttempts: 3,
		},
		h.cache,
		h.sink,
		h.status,
		h.notifier,
	)
	return h
}

func eventPayload(t *testing.T, action string, record map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"action": action, "record": record})
	require.NoError(t, err)
	return data
}

func TestRealtimeConnectsAndReportsRecovery(t *testing.T) {
	h := newRealtimeHarness(t, &fakeFactory{})
	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	assert.True(t, h.svc.Connected())
	assert.Equal(t, 1, h.sink.Recovered())
}

func TestRealtimeRoutesOpenDocumentEventsToSink(t *testing.T) {
	factory := &fakeFactory{}
	h := newRealtimeHarness(t, factory)
	openId := uuid.New()
	h.sink.mu.Lock()
	h.sink.openId = openId
	h.sink.hasOpen = true
	h.sink.mu.Unlock()

	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	factory.Current().Push(eventPayload(t, "update", map[string]interface{}{
		"id":         openId.String(),
		"title":      "Remote",
		"content":    "remote body",
		"updated_at": time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
	}))

	assert.Eventually(t, func() bool {
		events := h.sink.Events()
		return len(events) == 1 &&
			events[0].Action == entity.ActionUpdate &&
			events[0].Record.Content == "remote body"
	}, time.Second, 5*time.Millisecond)
}

func TestRealtimeRefreshesCacheForBackgroundDocuments(t *testing.T) {
	factory := &fakeFactory{}
	h := newRealtimeHarness(t, factory)
	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	id := uuid.New()
	factory.Current().Push(eventPayload(t, "create", map[string]interface{}{
		"id":      id.String(),
		"content": "cached body",
	}))

	assert.Eventually(t, func() bool {
		doc, ok := h.cache.Get(id)
		return ok && doc.Content == "cached body"
	}, time.Second, 5*time.Millisecond)

	// Deletion evicts.
	factory.Current().Push(eventPayload(t, "delete", map[string]interface{}{"id": id.String()}))
	assert.Eventually(t, func() bool {
		_, ok := h.cache.Get(id)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRealtimeNormalizesSparseRecords(t *testing.T) {
	factory := &fakeFactory{}
	h := newRealtimeHarness(t, factory)
	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	id := uuid.New()
	factory.Current().Push(eventPayload(t, "update", map[string]interface{}{"id": id.String()}))

	assert.Eventually(t, func() bool {
		doc, ok := h.cache.Get(id)
		return ok && doc.Title == "Untitled" && doc.Content == "" && !doc.Pinned
	}, time.Second, 5*time.Millisecond)
}

func TestRealtimeDropsMalformedEvents(t *testing.T) {
	factory := &fakeFactory{}
	h := newRealtimeHarness(t, factory)
	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	tr := factory.Current()
	tr.Push([]byte("{not json"))
	tr.Push(eventPayload(t, "update", map[string]interface{}{"id": "not-a-uuid"}))
	tr.Push(eventPayload(t, "rename", map[string]interface{}{"id": uuid.New().String()}))

	// A well-formed event after the garbage still gets through.
	id := uuid.New()
	tr.Push(eventPayload(t, "update", map[string]interface{}{"id": id.String(), "title": "Good"}))
	assert.Eventually(t, func() bool {
		_, ok := h.cache.Get(id)
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, h.cache.List(), 1)
}

func TestRealtimeIgnoresNoOpEchoes(t *testing.T) {
	factory := &fakeFactory{}
	h := newRealtimeHarness(t, factory)
	openId := uuid.New()
	updated := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	h.cache.Upsert(entity.Document{Id: openId, Title: "Doc", Content: "body", UpdatedAt: updated})
	h.sink.mu.Lock()
	h.sink.openId = openId
	h.sink.hasOpen = true
	h.sink.mu.Unlock()

	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	factory.Current().Push(eventPayload(t, "update", map[string]interface{}{
		"id":         openId.String(),
		"title":      "Doc",
		"content":    "body",
		"updated_at": updated,
	}))

	// A changed event drains after it, proving the echo was dropped
	// rather than still queued.
	factory.Current().Push(eventPayload(t, "update", map[string]interface{}{
		"id":         openId.String(),
		"title":      "Doc",
		"content":    "body v2",
		"updated_at": updated.Add(time.Minute),
	}))

	assert.Eventually(t, func() bool {
		events := h.sink.Events()
		return len(events) == 1 && events[0].Record.Content == "body v2"
	}, time.Second, 5*time.Millisecond)
}

func TestRealtimeReconnectsWithFixedDelay(t *testing.T) {
	factory := &fakeFactory{failures: 2}
	h := newRealtimeHarness(t, factory)
	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	assert.False(t, h.svc.Connected())
	assert.Equal(t, 1, factory.Attempts())

	h.clk.Advance(5 * time.Second)
	assert.Equal(t, 2, factory.Attempts())
	assert.False(t, h.svc.Connected())

	h.clk.Advance(5 * time.Second)
	assert.Equal(t, 3, factory.Attempts())
	assert.True(t, h.svc.Connected(), "third attempt lands")
}

func TestRealtimeDegradesAfterReconnectBudget(t *testing.T) {
	factory := &fakeFactory{failures: 100}
	h := newRealtimeHarness(t, factory)
	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	h.clk.Advance(time.Minute)
	assert.Equal(t, 3, factory.Attempts(), "stops at the attempt budget")
	assert.False(t, h.svc.Connected())

	var sawDegraded bool
	for _, n := range h.notifier.All() {
		if n.Kind == "warning" {
			sawDegraded = true
		}
	}
	assert.True(t, sawDegraded, "degrading to autosave-only is announced once")
}

func TestRealtimePauseParksEventsUntilResume(t *testing.T) {
	factory := &fakeFactory{}
	h := newRealtimeHarness(t, factory)
	openId := uuid.New()
	h.sink.mu.Lock()
	h.sink.openId = openId
	h.sink.hasOpen = true
	h.sink.mu.Unlock()

	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	h.svc.Pause()
	factory.Current().Push(eventPayload(t, "update", map[string]interface{}{
		"id":      openId.String(),
		"content": "first while paused",
	}))
	factory.Current().Push(eventPayload(t, "update", map[string]interface{}{
		"id":      openId.String(),
		"content": "second while paused",
	}))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.sink.Events(), "paused events never reach the sink")

	h.svc.Resume()
	assert.Eventually(t, func() bool {
		events := h.sink.Events()
		return len(events) == 2 &&
			events[0].Record.Content == "first while paused" &&
			events[1].Record.Content == "second while paused"
	}, time.Second, 5*time.Millisecond, "parked events replay in arrival order")
}

func TestRealtimeHealthCheckForcesReconnect(t *testing.T) {
	factory := &fakeFactory{}
	h := newRealtimeHarness(t, factory)
	require.NoError(t, h.svc.Start())
	defer h.svc.Close()

	first := factory.Current()
	require.Equal(t, 1, factory.Attempts())

	// Silence past the health window tears the connection down and
	// dials again.
	h.clk.Advance(2 * 90 * time.Second)
	assert.GreaterOrEqual(t, factory.Attempts(), 2)
	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	assert.True(t, closed, "the stale transport is closed")
	assert.True(t, h.svc.Connected())
}
