package service

import (
	"sync"

	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/pkg/logger"

	"github.com/google/uuid"
)

type OverallState string

const (
	StateSynced    OverallState = "synced"
	StateSaving    OverallState = "saving"
	StateConflicts OverallState = "conflicts"
	StateError     OverallState = "error"
	StateOffline   OverallState = "offline"
)

type IStatusService interface {
	SaveStatusSink
	// SetRealtime records push-channel connectivity. degraded means the
	// channel gave up reconnecting and the engine runs autosave-only.
	SetRealtime(connected, degraded bool)
	SetConflictCount(n int)
	Overall() OverallState
	// Label is the user-facing text for the current state.
	Label() string
	// Subscribe registers an observer invoked on every overall-state
	// change. Returns the matching unsubscribe function.
	Subscribe(fn func(OverallState)) func()
}

// statusService merges the save path and the realtime connection into
// one observable state. Precedence: pending conflicts trump everything,
// then an active save, then save-path errors, then connectivity.
type statusService struct {
	mu          sync.Mutex
	saves       map[uuid.UUID]entity.SaveStatus
	connected   bool
	degraded    bool
	conflicts   int
	logger      logger.ILogger
	subscribers map[int]func(OverallState)
	nextSubId   int
	last        OverallState
}

func NewStatusService(log logger.ILogger) IStatusService {
	return &statusService{
		saves:       make(map[uuid.UUID]entity.SaveStatus),
		connected:   false,
		logger:      log,
		subscribers: make(map[int]func(OverallState)),
		last:        StateSynced,
	}
}

func (s *statusService) OnSaveStatus(documentId uuid.UUID, status entity.SaveStatus) {
	s.mu.Lock()
	// Idle contributes nothing to the aggregate; dropping the entry
	// keeps closed documents from lingering in the map.
	if status.State == entity.SaveStateIdle {
		delete(s.saves, documentId)
	} else {
		s.saves[documentId] = status
	}
	s.publishLocked()
}

func (s *statusService) SetRealtime(connected, degraded bool) {
	s.mu.Lock()
	s.connected = connected
	s.degraded = degraded
	s.publishLocked()
}

func (s *statusService) SetConflictCount(n int) {
	s.mu.Lock()
	s.conflicts = n
	s.publishLocked()
}

func (s *statusService) Overall() OverallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overallLocked()
}

func (s *statusService) overallLocked() OverallState {
	if s.conflicts > 0 {
		return StateConflicts
	}
	var sawError, sawOffline bool
	for _, st := range s.saves {
		switch st.State {
		case entity.SaveStateSaving:
			return StateSaving
		case entity.SaveStateError:
			sawError = true
		case entity.SaveStateOffline:
			sawOffline = true
		case entity.SaveStateConflict:
			// Conflict records drive the conflicts count; a lone
			// conflict save state is counted the same way.
			return StateConflicts
		}
	}
	if sawOffline {
		return StateOffline
	}
	if sawError {
		return StateError
	}
	return StateSynced
}

func (s *statusService) Label() string {
	switch s.Overall() {
	case StateSaving:
		return "Saving..."
	case StateConflicts:
		return "Conflicts need attention"
	case StateError:
		return "Sync error"
	case StateOffline:
		return "Offline - changes stored locally"
	default:
		return "All changes saved"
	}
}

func (s *statusService) Subscribe(fn func(OverallState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubId
	s.nextSubId++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// publishLocked is called with the lock held; it releases it before
// invoking subscribers so observers may call back into the service.
func (s *statusService) publishLocked() {
	state := s.overallLocked()
	if state == s.last {
		s.mu.Unlock()
		return
	}
	s.last = state
	fns := make([]func(OverallState), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
