package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/dto"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/internal/repository/contract"
	"doc-sync-engine/pkg/clock"
	"doc-sync-engine/pkg/remote"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SaveListener receives save-path outcomes the engine must react to.
type SaveListener interface {
	// OnSaveSuccess fires after the canonical record has been applied to
	// the document cache and the backup entry cleared.
	OnSaveSuccess(documentId uuid.UUID, doc entity.Document)
	// OnSaveConflict fires when the store rejected the write as a
	// version mismatch. Conflicts are never auto-retried.
	OnSaveConflict(documentId uuid.UUID, conflict *remote.ConflictError)
}

// SaveStatusSink observes every status transition on the save path.
type SaveStatusSink interface {
	OnSaveStatus(documentId uuid.UUID, status entity.SaveStatus)
}

// BaseTimestampFunc supplies the client's last known server timestamp
// for a document, used for the store's version-mismatch check. Nil
// when no remote timestamp has been observed.
type BaseTimestampFunc func(documentId uuid.UUID) *time.Time

type ISaveService interface {
	// Save runs one persistence attempt with the given values, blocking
	// until it completes. If an attempt for the same id is already in
	// flight the values are queued and applied after it finishes;
	// attempts per document are strictly sequential.
	Save(documentId uuid.UUID, title, content string)
	// NotifyEdit reports a user edit. A retryable error state falls
	// back to idle so the next debounce cycle attempts a fresh save.
	NotifyEdit(documentId uuid.UUID)
	Status(documentId uuid.UUID) entity.SaveStatus
	// Flush blocks until no attempt for the id is in flight.
	Flush(documentId uuid.UUID)
	// Reset returns the id to idle and stops any scheduled retry,
	// keeping the last-saved time. Used after an explicit conflict
	// resolution.
	Reset(documentId uuid.UUID)
	// Cancel stops any scheduled retry and drops all save state for the
	// id. Call Flush first when an attempt may be running.
	Cancel(documentId uuid.UUID)
}

type queuedSave struct {
	title   string
	content string
}

type saveState struct {
	status     entity.SaveStatus
	inFlight   bool
	done       chan struct{}
	queued     *queuedSave
	retryTimer clock.Timer
	retryGen   int
	bo         *backoff.ExponentialBackOff
}

type saveService struct {
	mu       sync.Mutex
	states   map[uuid.UUID]*saveState
	api      remote.IDocumentAPI
	backups  IBackupService
	cache    contract.DocumentCache
	clk      clock.Clock
	logger   logger.ILogger
	cfg      config.SaveConfig
	validate *validator.Validate
	base     BaseTimestampFunc
	listener SaveListener
	sink     SaveStatusSink
}

func NewSaveService(
	api remote.IDocumentAPI,
	backups IBackupService,
	cache contract.DocumentCache,
	clk clock.Clock,
	log logger.ILogger,
	cfg config.SaveConfig,
	base BaseTimestampFunc,
	listener SaveListener,
	sink SaveStatusSink,
) ISaveService {
	return &saveService{
		states:   make(map[uuid.UUID]*saveState),
		api:      api,
		backups:  backups,
		cache:    cache,
		clk:      clk,
		logger:   log,
		cfg:      cfg,
		validate: validator.New(),
		base:     base,
		listener: listener,
		sink:     sink,
	}
}

func (s *saveService) stateLocked(id uuid.UUID) *saveState {
	st, ok := s.states[id]
	if !ok {
		st = &saveState{status: entity.NewSaveStatus()}
		st.bo = &backoff.ExponentialBackOff{
			InitialInterval:     s.cfg.RetryBase,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         s.cfg.RetryCap,
		}
		st.bo.Reset()
		s.states[id] = st
	}
	return st
}

func (s *saveService) Save(documentId uuid.UUID, title, content string) {
	s.mu.Lock()
	st := s.stateLocked(documentId)
	// A user-driven save supersedes any pending retry.
	st.retryGen++
	if st.retryTimer != nil {
		st.retryTimer.Stop()
		st.retryTimer = nil
	}
	if st.inFlight {
		st.queued = &queuedSave{title: title, content: content}
		s.mu.Unlock()
		return
	}
	st.inFlight = true
	st.done = make(chan struct{})
	s.mu.Unlock()

	s.runLoop(documentId, title, content)
}

// runLoop performs attempts until neither a queued save nor the current
// one remains, keeping saves for one document strictly sequential.
func (s *saveService) runLoop(documentId uuid.UUID, title, content string) {
	for {
		s.attempt(documentId, title, content)

		s.mu.Lock()
		st := s.states[documentId]
		if st == nil {
			s.mu.Unlock()
			return
		}
		if st.queued != nil {
			q := st.queued
			st.queued = nil
			title, content = q.title, q.content
			s.mu.Unlock()
			continue
		}
		st.inFlight = false
		close(st.done)
		s.mu.Unlock()
		return
	}
}

func (s *saveService) attempt(documentId uuid.UUID, title, content string) {
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}

	s.transition(documentId, func(st *saveState) {
		st.status.State = entity.SaveStateSaving
	})

	req := &dto.UpdateDocumentRequest{
		Title:         title,
		Content:       content,
		BaseUpdatedAt: s.base(documentId),
	}

	var err error
	if verr := s.validate.Struct(req); verr != nil {
		err = &remote.ValidationError{Field: "title", Reason: verr.Error()}
	}

	var doc *entity.Document
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
		tr := otel.Tracer("doc-sync-engine")
		ctx, span := tr.Start(ctx, "document.save")
		span.SetAttributes(attribute.String("document.id", documentId.String()))
		doc, err = s.api.UpdateDocument(ctx, documentId, req)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		cancel()
	}

	if err == nil {
		s.onSuccess(documentId, *doc)
		return
	}
	s.onFailure(documentId, title, content, err)
}

func (s *saveService) onSuccess(documentId uuid.UUID, doc entity.Document) {
	now := s.clk.Now()
	s.transition(documentId, func(st *saveState) {
		st.status.State = entity.SaveStateSaved
		st.status.LastSaved = &now
		st.status.RetryCount = 0
		st.status.CanRetry = true
		st.status.ErrorMessage = ""
		st.bo.Reset()
	})

	s.backups.Remove(documentId)
	s.cache.Upsert(doc)
	s.listener.OnSaveSuccess(documentId, doc)
	s.logger.Info("SaveService", "Document saved", map[string]interface{}{"document_id": documentId, "updated_at": doc.UpdatedAt})
}

func (s *saveService) onFailure(documentId uuid.UUID, title, content string, err error) {
	kind := remote.Classify(err)
	s.logger.Warn("SaveService", "Save attempt failed", map[string]interface{}{
		"document_id": documentId,
		"kind":        string(kind),
		"error":       err.Error(),
	})

	switch kind {
	case remote.KindNetwork:
		s.transition(documentId, func(st *saveState) {
			st.status.State = entity.SaveStateOffline
			st.status.ErrorMessage = err.Error()
		})
		s.backups.Put(documentId, title, content)
		s.scheduleRetry(documentId, title, content)

	case remote.KindConflict:
		s.transition(documentId, func(st *saveState) {
			st.status.State = entity.SaveStateConflict
			st.status.CanRetry = false
			st.status.ErrorMessage = err.Error()
		})
		var confErr *remote.ConflictError
		if !errors.As(err, &confErr) {
			confErr = &remote.ConflictError{DocumentId: documentId}
		}
		s.listener.OnSaveConflict(documentId, confErr)

	case remote.KindValidation:
		s.transition(documentId, func(st *saveState) {
			st.status.State = entity.SaveStateError
			st.status.CanRetry = false
			st.status.ErrorMessage = err.Error()
		})

	default:
		s.transition(documentId, func(st *saveState) {
			st.status.State = entity.SaveStateError
			st.status.ErrorMessage = err.Error()
		})
		s.scheduleRetry(documentId, title, content)
	}
}

func (s *saveService) scheduleRetry(documentId uuid.UUID, title, content string) {
	s.mu.Lock()
	st := s.stateLocked(documentId)
	if st.status.RetryCount >= s.cfg.MaxRetries {
		st.status.CanRetry = false
		st.status.State = entity.SaveStateError
		status := st.status
		s.mu.Unlock()
		s.notifySink(documentId, status)
		s.logger.Error("SaveService", "Retry budget exhausted", map[string]interface{}{"document_id": documentId})
		return
	}
	st.status.RetryCount++
	delay := st.bo.NextBackOff()
	gen := st.retryGen
	status := st.status
	st.retryTimer = s.clk.AfterFunc(delay, func() {
		s.retryFire(documentId, gen, title, content)
	})
	s.mu.Unlock()
	s.notifySink(documentId, status)
}

func (s *saveService) retryFire(documentId uuid.UUID, gen int, title, content string) {
	s.mu.Lock()
	st := s.states[documentId]
	if st == nil || st.retryGen != gen || st.inFlight {
		s.mu.Unlock()
		return
	}
	st.retryTimer = nil
	st.inFlight = true
	st.done = make(chan struct{})
	s.mu.Unlock()

	s.runLoop(documentId, title, content)
}

func (s *saveService) NotifyEdit(documentId uuid.UUID) {
	s.mu.Lock()
	st := s.states[documentId]
	if st == nil || st.status.State != entity.SaveStateError || !st.status.CanRetry {
		s.mu.Unlock()
		return
	}
	st.status.State = entity.SaveStateIdle
	status := st.status
	s.mu.Unlock()
	s.notifySink(documentId, status)
}

func (s *saveService) Status(documentId uuid.UUID) entity.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[documentId]
	if st == nil {
		return entity.NewSaveStatus()
	}
	return st.status
}

func (s *saveService) Flush(documentId uuid.UUID) {
	s.mu.Lock()
	st := s.states[documentId]
	if st == nil || !st.inFlight {
		s.mu.Unlock()
		return
	}
	done := st.done
	s.mu.Unlock()
	<-done
}

func (s *saveService) Reset(documentId uuid.UUID) {
	s.mu.Lock()
	st := s.states[documentId]
	if st == nil {
		s.mu.Unlock()
		return
	}
	st.retryGen++
	if st.retryTimer != nil {
		st.retryTimer.Stop()
		st.retryTimer = nil
	}
	st.bo.Reset()
	lastSaved := st.status.LastSaved
	st.status = entity.NewSaveStatus()
	st.status.LastSaved = lastSaved
	status := st.status
	s.mu.Unlock()
	s.notifySink(documentId, status)
}

func (s *saveService) Cancel(documentId uuid.UUID) {
	s.mu.Lock()
	st := s.states[documentId]
	if st == nil {
		s.mu.Unlock()
		return
	}
	st.retryGen++
	if st.retryTimer != nil {
		st.retryTimer.Stop()
		st.retryTimer = nil
	}
	delete(s.states, documentId)
	s.mu.Unlock()

	// A torn-down document must not keep pinning the aggregate state
	// through a stale offline or error entry.
	s.notifySink(documentId, entity.NewSaveStatus())
}

// transition mutates status under the lock and notifies the sink after
// releasing it, so sink callbacks can safely re-enter the service.
func (s *saveService) transition(documentId uuid.UUID, mutate func(st *saveState)) {
	s.mu.Lock()
	st := s.stateLocked(documentId)
	mutate(st)
	status := st.status
	s.mu.Unlock()
	s.notifySink(documentId, status)
}

func (s *saveService) notifySink(documentId uuid.UUID, status entity.SaveStatus) {
	if s.sink != nil {
		s.sink.OnSaveStatus(documentId, status)
	}
}
