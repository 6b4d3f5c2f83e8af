package service

import (
	"sync"
	"time"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/pkg/notify"
	"doc-sync-engine/pkg/remote"

	"github.com/google/uuid"
)

// testLogger discards everything; log assertions are not part of these
// suites.
type testLogger struct{}

func (testLogger) Debug(module, message string, details map[string]interface{}) {}
func (testLogger) Info(module, message string, details map[string]interface{})  {}
func (testLogger) Warn(module, message string, details map[string]interface{})  {}
func (testLogger) Error(module, message string, details map[string]interface{}) {}
func (testLogger) Sync() error                                                  { return nil }
func (testLogger) GetLogs(level string, limit int) ([]logger.LogEntry, error)   { return nil, nil }

func testSaveConfig() config.SaveConfig {
	return config.SaveConfig{
		DebounceDelay: 2 * time.Second,
		SaveTimeout:   10 * time.Second,
		RetryBase:     1 * time.Second,
		RetryCap:      30 * time.Second,
		MaxRetries:    5,
	}
}

func testResolverConfig() config.ResolverConfig {
	return config.ResolverConfig{
		NewDocumentAge:       15 * time.Second,
		RecentlyOpenedWindow: 5 * time.Second,
		ClearlyNewerGap:      60 * time.Second,
		JitterTolerance:      2 * time.Second,
		SimilarityCutoff:     0.8,
		SimilarityPrefixLen:  256,
	}
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	posted []notify.Notification
}

func (n *recordingNotifier) Notify(notification notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posted = append(n.posted, notification)
}

func (n *recordingNotifier) All() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Notification, len(n.posted))
	copy(out, n.posted)
	return out
}

// recordingListener captures save-path callbacks.
type recordingListener struct {
	mu        sync.Mutex
	successes []entity.Document
	conflicts []*remote.ConflictError
}

func (l *recordingListener) OnSaveSuccess(documentId uuid.UUID, doc entity.Document) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successes = append(l.successes, doc)
}

func (l *recordingListener) OnSaveConflict(documentId uuid.UUID, conflict *remote.ConflictError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conflicts = append(l.conflicts, conflict)
}

func (l *recordingListener) Successes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.successes)
}

func (l *recordingListener) Conflicts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conflicts)
}

// recordingSink captures every save status transition in order.
type recordingSink struct {
	mu       sync.Mutex
	statuses []entity.SaveStatus
}

func (s *recordingSink) OnSaveStatus(documentId uuid.UUID, status entity.SaveStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) States() []entity.SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.SaveState, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st.State)
	}
	return out
}
