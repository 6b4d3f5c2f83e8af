package service

import (
	"sync"
	"time"

	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/pkg/clock"

	"github.com/google/uuid"
)

// SaveFunc is invoked with the latest buffered values when a debounce
// window closes. It blocks until the save attempt completes.
type SaveFunc func(documentId uuid.UUID, title, content string)

// DraftGuard answers whether a document's draft is still current and
// still meaningfully changed. A stale timer firing after a document
// switch must see false and silently no-op.
type DraftGuard func(documentId uuid.UUID, title, content string) bool

type IScheduleService interface {
	// NotifyChange buffers the latest values and re-arms the debounce
	// timer. While paused it still updates the buffer but starts no
	// timer.
	NotifyChange(documentId uuid.UUID, title, content string)
	// SaveNow cancels any pending timer and flushes the buffer through
	// the save path immediately. Blocks until the attempt completes.
	SaveNow(documentId uuid.UUID)
	Pause(documentId uuid.UUID)
	Resume(documentId uuid.UUID)
	// Cancel tears down all scheduling state for the id. Pending timers
	// are invalidated and will never fire.
	Cancel(documentId uuid.UUID)
}

type scheduleEntry struct {
	title   string
	content string
	timer   clock.Timer
	gen     int
	paused  bool
}

type scheduleService struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*scheduleEntry
	delay   time.Duration
	clk     clock.Clock
	logger  logger.ILogger
	guard   DraftGuard
	onFire  SaveFunc
}

func NewScheduleService(delay time.Duration, clk clock.Clock, log logger.ILogger, guard DraftGuard, onFire SaveFunc) IScheduleService {
	return &scheduleService{
		entries: make(map[uuid.UUID]*scheduleEntry),
		delay:   delay,
		clk:     clk,
		logger:  log,
		guard:   guard,
		onFire:  onFire,
	}
}

func (s *scheduleService) NotifyChange(documentId uuid.UUID, title, content string) {
	s.mu.Lock()
	entry, ok := s.entries[documentId]
	if !ok {
		entry = &scheduleEntry{}
		s.entries[documentId] = entry
	}
	entry.title = title
	entry.content = content
	if entry.paused {
		s.mu.Unlock()
		return
	}
	entry.gen++
	gen := entry.gen
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.timer = s.clk.AfterFunc(s.delay, func() {
		s.fire(documentId, gen)
	})
	s.mu.Unlock()
}

// fire runs in the timer goroutine. The generation check invalidates
// timers superseded by a later edit, a SaveNow, or a Cancel.
func (s *scheduleService) fire(documentId uuid.UUID, gen int) {
	s.mu.Lock()
	entry, ok := s.entries[documentId]
	if !ok || entry.gen != gen || entry.paused {
		s.mu.Unlock()
		return
	}
	title, content := entry.title, entry.content
	s.mu.Unlock()

	if !s.guard(documentId, title, content) {
		return
	}
	s.onFire(documentId, title, content)
}

func (s *scheduleService) SaveNow(documentId uuid.UUID) {
	s.mu.Lock()
	entry, ok := s.entries[documentId]
	if !ok {
		s.mu.Unlock()
		return
	}
	entry.gen++
	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
	title, content := entry.title, entry.content
	s.mu.Unlock()

	if !s.guard(documentId, title, content) {
		return
	}
	s.onFire(documentId, title, content)
}

func (s *scheduleService) Pause(documentId uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[documentId]
	if !ok {
		entry = &scheduleEntry{}
		s.entries[documentId] = entry
	}
	entry.paused = true
	entry.gen++
	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
}

func (s *scheduleService) Resume(documentId uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[documentId]
	if !ok || !entry.paused {
		return
	}
	entry.paused = false
	entry.gen++
	gen := entry.gen
	// Re-arm unconditionally; the guard decides at fire time whether
	// the buffered values are a meaningful change.
	entry.timer = s.clk.AfterFunc(s.delay, func() {
		s.fire(documentId, gen)
	})
}

func (s *scheduleService) Cancel(documentId uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[documentId]
	if !ok {
		return
	}
	entry.gen++
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(s.entries, documentId)
}
