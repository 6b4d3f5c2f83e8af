package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/internal/repository/contract"
	"doc-sync-engine/pkg/clock"
	"doc-sync-engine/pkg/notify"
	"doc-sync-engine/pkg/realtime"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const realtimeTopic = "realtime.documents"

// RealtimeSink is the engine-facing side of the realtime channel.
// Events for the currently open document go to HandleRemoteEvent; the
// rest refresh the cache directly.
type RealtimeSink interface {
	HandleRemoteEvent(evt entity.RealtimeEvent)
	OpenDocumentId() (uuid.UUID, bool)
	// OnRealtimeRecovered fires after a successful (re)connect so
	// offline backups can be surfaced for recovery.
	OnRealtimeRecovered()
}

type IRealtimeService interface {
	Start() error
	Connected() bool
	// Pause parks inbound events instead of dispatching them, so a
	// destructive local operation cannot be interleaved with remote
	// mutations. Resume replays the parked events in arrival order.
	Pause()
	Resume()
	Close()
}

// realtimeService normalizes the raw push channel into canonical
// document events. Raw transport callbacks only enqueue onto a single
// watermill channel; one dispatcher goroutine consumes it, so no state
// is ever mutated re-entrantly from overlapping callbacks.
type realtimeService struct {
	factory  realtime.Factory
	pubSub   *gochannel.GoChannel
	clk      clock.Clock
	logger   logger.ILogger
	cfg      config.RealtimeConfig
	cache    contract.DocumentCache
	sink     RealtimeSink
	status   IStatusService
	notifier notify.INotifier

	mu             sync.Mutex
	transport      realtime.ISubscription
	unsubscribe    realtime.Unsubscribe
	connected      bool
	degraded       bool
	closed         bool
	paused         bool
	parked         [][]byte
	failures       int
	lastEvent      time.Time
	healthTicker   clock.Ticker
	reconnectTimer clock.Timer
	cancelDispatch context.CancelFunc
}

func NewRealtimeService(
	factory realtime.Factory,
	clk clock.Clock,
	log logger.ILogger,
	cfg config.RealtimeConfig,
	cache contract.DocumentCache,
	sink RealtimeSink,
	status IStatusService,
	notifier notify.INotifier,
) IRealtimeService {
	return &realtimeService{
		factory:  factory,
		pubSub:   gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false)),
		clk:      clk,
		logger:   log,
		cfg:      cfg,
		cache:    cache,
		sink:     sink,
		status:   status,
		notifier: notifier,
	}
}

func (s *realtimeService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	messages, err := s.pubSub.Subscribe(ctx, realtimeTopic)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.cancelDispatch = cancel
	s.healthTicker = s.clk.TickerFunc(s.cfg.HealthWindow, s.healthCheck)
	s.mu.Unlock()

	go s.dispatch(messages)
	s.connect()
	return nil
}

func (s *realtimeService) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *realtimeService) connect() {
	s.mu.Lock()
	if s.closed || s.degraded {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	transport, err := s.factory()
	if err != nil {
		s.onConnectFailure(err)
		return
	}
	unsub, err := transport.Subscribe(s.cfg.Subject, s.enqueue)
	if err != nil {
		transport.Close()
		s.onConnectFailure(err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsub()
		transport.Close()
		return
	}
	s.transport = transport
	s.unsubscribe = unsub
	s.connected = true
	s.failures = 0
	s.lastEvent = s.clk.Now()
	s.mu.Unlock()

	s.logger.Info("RealtimeService", "Channel connected", map[string]interface{}{"subject": s.cfg.Subject})
	s.status.SetRealtime(true, false)
	s.sink.OnRealtimeRecovered()
}

func (s *realtimeService) onConnectFailure(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.failures++
	failures := s.failures
	if failures >= s.cfg.MaxReconnectAttempts {
		s.degraded = true
		s.mu.Unlock()
		s.logger.Error("RealtimeService", "Giving up on realtime channel", map[string]interface{}{
			"attempts": failures,
			"error":    err.Error(),
		})
		s.status.SetRealtime(false, true)
		s.notifier.Notify(notify.Notification{
			Kind:    notify.KindWarning,
			Message: "Live updates unavailable; autosave keeps working",
		})
		return
	}
	s.reconnectTimer = s.clk.AfterFunc(s.cfg.ReconnectDelay, s.connect)
	s.mu.Unlock()

	s.logger.Warn("RealtimeService", "Connect attempt failed", map[string]interface{}{
		"attempt": failures,
		"error":   err.Error(),
	})
	s.status.SetRealtime(false, false)
}

// healthCheck forces a reconnect when the channel has been silent for a
// full window while believed connected.
func (s *realtimeService) healthCheck() {
	s.mu.Lock()
	stale := s.connected && s.clk.Now().Sub(s.lastEvent) > s.cfg.HealthWindow
	if !stale {
		s.mu.Unlock()
		return
	}
	s.teardownTransportLocked()
	s.mu.Unlock()

	s.logger.Warn("RealtimeService", "Channel silent past health window, reconnecting", nil)
	s.status.SetRealtime(false, false)
	s.connect()
}

// enqueue runs in the transport's callback goroutine and must not touch
// engine state: it only hands the payload to the dispatcher queue.
func (s *realtimeService) enqueue(data []byte) {
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := s.pubSub.Publish(realtimeTopic, msg); err != nil {
		s.logger.Warn("RealtimeService", "Failed to enqueue event", map[string]interface{}{"error": err.Error()})
	}
}

func (s *realtimeService) dispatch(messages <-chan *message.Message) {
	for msg := range messages {
		s.handleEvent(msg.Payload)
		msg.Ack()
	}
}

type wireRecord struct {
	Id        string     `json:"id"`
	Title     *string    `json:"title"`
	Content   *string    `json:"content"`
	UpdatedAt *time.Time `json:"updated_at"`
	Pinned    *bool      `json:"pinned"`
	FolderId  *string    `json:"folder_id"`
	ProfileId *string    `json:"profile_id"`
}

func (s *realtimeService) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *realtimeService) Resume() {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	parked := s.parked
	s.parked = nil
	s.mu.Unlock()

	// Re-publish through the queue so parked events go through the
	// same single dispatcher as live ones.
	for _, data := range parked {
		s.enqueue(data)
	}
}

func (s *realtimeService) handleEvent(data []byte) {
	s.mu.Lock()
	s.lastEvent = s.clk.Now()
	if s.paused {
		s.parked = append(s.parked, data)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	var wire struct {
		Action string     `json:"action"`
		Record wireRecord `json:"record"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		s.logger.Warn("RealtimeService", "Dropping malformed event", map[string]interface{}{"error": err.Error()})
		return
	}

	doc, ok := s.normalize(wire.Record)
	if !ok {
		return
	}
	action := entity.RealtimeAction(wire.Action)
	switch action {
	case entity.ActionCreate, entity.ActionUpdate, entity.ActionDelete:
	default:
		s.logger.Warn("RealtimeService", "Dropping event with unknown action", map[string]interface{}{"action": wire.Action})
		return
	}

	// An update that matches the cached copy exactly is a no-op echo.
	if action == entity.ActionUpdate {
		if cached, found := s.cache.Get(doc.Id); found &&
			cached.UpdatedAt.Equal(doc.UpdatedAt) &&
			cached.Title == doc.Title &&
			cached.Content == doc.Content {
			return
		}
	}

	if openId, open := s.sink.OpenDocumentId(); open && openId == doc.Id {
		s.sink.HandleRemoteEvent(entity.RealtimeEvent{Action: action, Record: doc})
		return
	}

	switch action {
	case entity.ActionDelete:
		s.cache.Remove(doc.Id)
	default:
		s.cache.Upsert(doc)
	}
}

// normalize coerces a raw record into the canonical Document shape,
// defaulting absent fields.
func (s *realtimeService) normalize(w wireRecord) (entity.Document, bool) {
	id, err := uuid.Parse(w.Id)
	if err != nil {
		s.logger.Warn("RealtimeService", "Dropping event with invalid document id", map[string]interface{}{"id": w.Id})
		return entity.Document{}, false
	}
	doc := entity.Document{Id: id, Title: "Untitled"}
	if w.Title != nil && *w.Title != "" {
		doc.Title = *w.Title
	}
	if w.Content != nil {
		doc.Content = *w.Content
	}
	if w.UpdatedAt != nil {
		doc.UpdatedAt = *w.UpdatedAt
	}
	if w.Pinned != nil {
		doc.Pinned = *w.Pinned
	}
	if w.FolderId != nil {
		if fid, err := uuid.Parse(*w.FolderId); err == nil {
			doc.FolderId = &fid
		}
	}
	if w.ProfileId != nil {
		if pid, err := uuid.Parse(*w.ProfileId); err == nil {
			doc.ProfileId = &pid
		}
	}
	return doc, true
}

func (s *realtimeService) teardownTransportLocked() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	s.connected = false
}

func (s *realtimeService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.healthTicker != nil {
		s.healthTicker.Stop()
		s.healthTicker = nil
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.teardownTransportLocked()
	cancel := s.cancelDispatch
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := s.pubSub.Close(); err != nil {
		s.logger.Warn("RealtimeService", "Event queue close failed", map[string]interface{}{"error": err.Error()})
	}
}
