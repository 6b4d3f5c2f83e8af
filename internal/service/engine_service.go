package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/internal/repository/contract"
	"doc-sync-engine/pkg/clock"
	"doc-sync-engine/pkg/editor"
	"doc-sync-engine/pkg/notify"
	"doc-sync-engine/pkg/remote"

	"github.com/google/uuid"
)

// IEngineService is the single entry point the editor shell talks to.
// It owns the open-document draft, drives the scheduler and save path,
// and reacts to remote events routed in by the realtime channel.
type IEngineService interface {
	RealtimeSink

	// OpenDocument loads a document into the editor. Any previously
	// open document is closed first with full switch safety.
	OpenDocument(doc entity.Document)
	// CloseDocument flushes unsaved work, waits for in-flight attempts,
	// then destroys all per-document state.
	CloseDocument()
	// NotifyChange reports the editor's current values after a user
	// edit.
	NotifyChange(title, content string)
	// SaveNow bypasses the debounce window for the open document.
	SaveNow()
	SetFocused(focused bool)
	Status() entity.SaveStatus

	Conflicts() []entity.ConflictRecord
	ResolveConflict(documentId uuid.UUID, choice entity.ResolutionChoice) error

	Backups() []entity.OfflineBackupRecord
	ApplyBackup(documentId uuid.UUID) error
	DismissBackup(documentId uuid.UUID)

	// ForceSync clears a retryable error and pushes the open document
	// through the save path immediately.
	ForceSync()
	// AttachRealtime hands the engine the realtime channel so
	// PauseAutosave and ResumeAutosave can propagate to it. Called once
	// during bootstrap; the channel is constructed after the engine
	// because the engine is its sink.
	AttachRealtime(rt IRealtimeService)
	// PauseAutosave suspends both the debounce scheduler and the
	// realtime channel, used around destructive operations.
	PauseAutosave()
	ResumeAutosave()

	Close()
}

type engineService struct {
	scheduler IScheduleService
	saver     ISaveService
	backups   IBackupService
	cache     contract.DocumentCache
	resolver  IResolverService
	status    IStatusService
	surface   editor.ISurface
	notifier  notify.INotifier
	clk       clock.Clock
	logger    logger.ILogger
	dirtyPred entity.DirtyPredicate
	realtime  IRealtimeService

	mu               sync.Mutex
	draft            *entity.Draft
	deferred         *entity.RealtimeEvent
	conflicts        map[uuid.UUID]entity.ConflictRecord
	focused          bool
	recoveryNotified bool
}

// NewEngineService wires the scheduler and save path around the engine
// itself: the engine is the scheduler's draft guard, the save path's
// listener and the realtime channel's sink.
func NewEngineService(
	api remote.IDocumentAPI,
	backups IBackupService,
	cache contract.DocumentCache,
	resolver IResolverService,
	status IStatusService,
	surface editor.ISurface,
	notifier notify.INotifier,
	clk clock.Clock,
	log logger.ILogger,
	cfg config.SaveConfig,
) IEngineService {
	e := &engineService{
		backups:   backups,
		cache:     cache,
		resolver:  resolver,
		status:    status,
		surface:   surface,
		notifier:  notifier,
		clk:       clk,
		logger:    log,
		dirtyPred: entity.DefaultDirtyPredicate,
		conflicts: make(map[uuid.UUID]entity.ConflictRecord),
	}
	e.scheduler = NewScheduleService(cfg.DebounceDelay, clk, log, e.guardDraft, e.runSave)
	e.saver = NewSaveService(api, backups, cache, clk, log, cfg, e.baseTimestamp, e, status)
	return e
}

// guardDraft is consulted when a debounce timer fires. A timer armed
// before a document switch, or one whose buffered values are no longer
// a real change, must no-op.
func (e *engineService) guardDraft(documentId uuid.UUID, title, content string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil || e.draft.DocumentId != documentId {
		return false
	}
	return e.dirtyPred(title, content, e.draft.LastSavedTitle, e.draft.LastSavedContent)
}

func (e *engineService) runSave(documentId uuid.UUID, title, content string) {
	e.saver.Save(documentId, title, content)
}

func (e *engineService) baseTimestamp(documentId uuid.UUID) *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil || e.draft.DocumentId != documentId || e.draft.LastRemoteUpdatedAt.IsZero() {
		return nil
	}
	base := e.draft.LastRemoteUpdatedAt
	return &base
}

func (e *engineService) OpenDocument(doc entity.Document) {
	e.CloseDocument()

	e.mu.Lock()
	e.draft = &entity.Draft{
		DocumentId:          doc.Id,
		Title:               doc.Title,
		Content:             doc.Content,
		LastSavedTitle:      doc.Title,
		LastSavedContent:    doc.Content,
		OpenedAt:            e.clk.Now(),
		LastRemoteUpdatedAt: doc.UpdatedAt,
	}
	e.mu.Unlock()

	e.surface.SetContent(doc.Content, false)
	e.cache.Upsert(doc)
	e.logger.Info("EngineService", "Document opened", map[string]interface{}{"document_id": doc.Id})

	if backup, ok := e.backups.Get(doc.Id); ok {
		if backup.Timestamp.After(doc.UpdatedAt) {
			e.notifier.Notify(e.recoveryPrompt(doc.Id))
		} else {
			// The server copy already includes these changes.
			e.backups.Remove(doc.Id)
		}
	}
}

func (e *engineService) CloseDocument() {
	e.mu.Lock()
	d := e.draft
	if d == nil {
		e.mu.Unlock()
		return
	}
	id := d.DocumentId
	dirty := d.Dirty(e.dirtyPred)
	e.mu.Unlock()

	if dirty {
		e.scheduler.SaveNow(id)
	}
	e.saver.Flush(id)
	e.scheduler.Cancel(id)
	e.saver.Cancel(id)

	e.mu.Lock()
	e.draft = nil
	e.deferred = nil
	if _, ok := e.conflicts[id]; ok {
		delete(e.conflicts, id)
	}
	n := len(e.conflicts)
	e.mu.Unlock()

	e.status.SetConflictCount(n)
	e.logger.Info("EngineService", "Document closed", map[string]interface{}{"document_id": id})
}

func (e *engineService) NotifyChange(title, content string) {
	e.mu.Lock()
	d := e.draft
	if d == nil {
		e.mu.Unlock()
		return
	}
	d.Title = title
	d.Content = content
	id := d.DocumentId
	e.mu.Unlock()

	e.saver.NotifyEdit(id)
	e.scheduler.NotifyChange(id, title, content)
}

func (e *engineService) SaveNow() {
	e.mu.Lock()
	d := e.draft
	if d == nil {
		e.mu.Unlock()
		return
	}
	id := d.DocumentId
	e.mu.Unlock()
	e.scheduler.SaveNow(id)
}

func (e *engineService) SetFocused(focused bool) {
	e.mu.Lock()
	e.focused = focused
	var replay *entity.RealtimeEvent
	if !focused && e.deferred != nil {
		replay = e.deferred
		e.deferred = nil
	}
	e.mu.Unlock()

	if replay != nil {
		e.HandleRemoteEvent(*replay)
	}
}

func (e *engineService) Status() entity.SaveStatus {
	e.mu.Lock()
	d := e.draft
	if d == nil {
		e.mu.Unlock()
		return entity.NewSaveStatus()
	}
	id := d.DocumentId
	e.mu.Unlock()
	return e.saver.Status(id)
}

// OnSaveSuccess advances the dirty baseline to the persisted values.
// The draft may already hold newer keystrokes; those stay dirty. A
// remote update deferred while the user was composing is re-evaluated
// here: a completed save means editing has paused.
func (e *engineService) OnSaveSuccess(documentId uuid.UUID, doc entity.Document) {
	e.mu.Lock()
	var replay *entity.RealtimeEvent
	if e.draft != nil && e.draft.DocumentId == documentId {
		e.draft.MarkSaved(doc.Title, doc.Content)
		e.draft.LastRemoteUpdatedAt = doc.UpdatedAt
		if e.deferred != nil {
			replay = e.deferred
			e.deferred = nil
		}
	}
	e.mu.Unlock()

	if replay != nil {
		// The save we just completed supersedes an older parked record.
		if replay.Record.UpdatedAt.After(doc.UpdatedAt) {
			e.HandleRemoteEvent(*replay)
		}
	}
}

func (e *engineService) OnSaveConflict(documentId uuid.UUID, conflict *remote.ConflictError) {
	e.mu.Lock()
	rec := entity.ConflictRecord{DocumentId: documentId, DetectedAt: e.clk.Now()}
	if conflict.ServerDocument != nil {
		rec.Remote = *conflict.ServerDocument
	} else {
		rec.Remote = entity.Document{Id: documentId, UpdatedAt: conflict.ServerUpdatedAt}
	}
	if e.draft != nil && e.draft.DocumentId == documentId {
		rec.LocalTitle = e.draft.Title
		rec.LocalContent = e.draft.Content
	}
	e.conflicts[documentId] = rec
	n := len(e.conflicts)
	e.mu.Unlock()

	e.status.SetConflictCount(n)
	e.notifier.Notify(e.conflictPrompt(documentId))
}

func (e *engineService) Conflicts() []entity.ConflictRecord {
	e.mu.Lock()
	out := make([]entity.ConflictRecord, 0, len(e.conflicts))
	for _, rec := range e.conflicts {
		out = append(out, rec)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

func (e *engineService) ResolveConflict(documentId uuid.UUID, choice entity.ResolutionChoice) error {
	e.mu.Lock()
	rec, ok := e.conflicts[documentId]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("no pending conflict for document %s", documentId)
	}
	delete(e.conflicts, documentId)
	n := len(e.conflicts)
	d := e.draft
	open := d != nil && d.DocumentId == documentId

	var title, content string
	if choice == entity.KeepRemote && open {
		d.Title = rec.Remote.Title
		d.Content = rec.Remote.Content
		d.MarkSaved(rec.Remote.Title, rec.Remote.Content)
		d.LastRemoteUpdatedAt = rec.Remote.UpdatedAt
	}
	if choice == entity.KeepLocal && open {
		// Accept the server timestamp as the new base so the re-save is
		// not rejected as a version mismatch again.
		d.LastRemoteUpdatedAt = rec.Remote.UpdatedAt
		title = d.Title
		content = d.Content
	}
	e.mu.Unlock()

	e.status.SetConflictCount(n)

	switch choice {
	case entity.KeepRemote:
		if open {
			e.scheduler.Cancel(documentId)
			e.surface.SetContent(rec.Remote.Content, false)
		}
		e.cache.Upsert(rec.Remote)
		e.saver.Reset(documentId)
	case entity.KeepLocal:
		e.saver.Reset(documentId)
		if open {
			e.scheduler.NotifyChange(documentId, title, content)
		}
	default:
		return fmt.Errorf("unknown resolution choice %q", choice)
	}

	e.logger.Info("EngineService", "Conflict resolved", map[string]interface{}{
		"document_id": documentId,
		"choice":      string(choice),
	})
	return nil
}

func (e *engineService) Backups() []entity.OfflineBackupRecord {
	return e.backups.ListAll()
}

func (e *engineService) ApplyBackup(documentId uuid.UUID) error {
	backup, ok := e.backups.Get(documentId)
	if !ok {
		return fmt.Errorf("no offline backup for document %s", documentId)
	}
	e.mu.Lock()
	d := e.draft
	if d == nil || d.DocumentId != documentId {
		e.mu.Unlock()
		return fmt.Errorf("document %s is not open", documentId)
	}
	d.Title = backup.Title
	d.Content = backup.Content
	e.mu.Unlock()

	e.surface.SetContent(backup.Content, false)
	e.saver.NotifyEdit(documentId)
	e.scheduler.NotifyChange(documentId, backup.Title, backup.Content)
	return nil
}

func (e *engineService) DismissBackup(documentId uuid.UUID) {
	e.backups.Remove(documentId)
}

func (e *engineService) ForceSync() {
	e.mu.Lock()
	d := e.draft
	if d == nil {
		e.mu.Unlock()
		return
	}
	id := d.DocumentId
	e.mu.Unlock()

	e.saver.NotifyEdit(id)
	e.scheduler.SaveNow(id)
}

func (e *engineService) AttachRealtime(rt IRealtimeService) {
	e.mu.Lock()
	e.realtime = rt
	e.mu.Unlock()
}

func (e *engineService) PauseAutosave() {
	e.mu.Lock()
	d := e.draft
	rt := e.realtime
	var id uuid.UUID
	open := d != nil
	if open {
		id = d.DocumentId
	}
	e.mu.Unlock()

	if open {
		e.scheduler.Pause(id)
	}
	if rt != nil {
		rt.Pause()
	}
}

func (e *engineService) ResumeAutosave() {
	e.mu.Lock()
	d := e.draft
	rt := e.realtime
	var id uuid.UUID
	open := d != nil
	if open {
		id = d.DocumentId
	}
	e.mu.Unlock()

	if open {
		e.scheduler.Resume(id)
	}
	if rt != nil {
		rt.Resume()
	}
}

func (e *engineService) OpenDocumentId() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return uuid.Nil, false
	}
	return e.draft.DocumentId, true
}

func (e *engineService) HandleRemoteEvent(evt entity.RealtimeEvent) {
	if evt.Action == entity.ActionDelete {
		e.handleRemoteDelete(evt.Record)
		return
	}

	e.mu.Lock()
	d := e.draft
	if d == nil || d.DocumentId != evt.Record.Id {
		e.mu.Unlock()
		e.cache.Upsert(evt.Record)
		return
	}

	in := ResolveInput{
		Remote:          evt.Record,
		DraftDirty:      d.Dirty(e.dirtyPred),
		EditorFocused:   e.focused,
		LastKnownRemote: d.LastRemoteUpdatedAt,
		OpenedAt:        d.OpenedAt,
		LocalContent:    d.Content,
		Now:             e.clk.Now(),
	}
	res := e.resolver.Resolve(in)

	switch res.Decision {
	case DecisionDefer:
		parked := evt
		e.deferred = &parked
		e.mu.Unlock()
		return
	case DecisionFlag:
		rec := entity.ConflictRecord{
			DocumentId:   d.DocumentId,
			Remote:       evt.Record,
			LocalTitle:   d.Title,
			LocalContent: d.Content,
			DetectedAt:   e.clk.Now(),
		}
		e.conflicts[d.DocumentId] = rec
		n := len(e.conflicts)
		e.mu.Unlock()
		e.status.SetConflictCount(n)
		e.notifier.Notify(e.conflictPrompt(rec.DocumentId))
		return
	}

	d.Title = evt.Record.Title
	d.Content = evt.Record.Content
	d.MarkSaved(evt.Record.Title, evt.Record.Content)
	d.LastRemoteUpdatedAt = evt.Record.UpdatedAt
	id := d.DocumentId
	e.mu.Unlock()

	// A debounce timer armed before the apply would flush stale values
	// over the record we just accepted.
	e.scheduler.Cancel(id)
	e.surface.SetContent(evt.Record.Content, false)
	e.cache.Upsert(evt.Record)
	if res.Notice != "" {
		e.notifier.Notify(notify.Notification{Kind: notify.KindInfo, Message: res.Notice})
	}
}

func (e *engineService) handleRemoteDelete(record entity.Document) {
	e.cache.Remove(record.Id)

	e.mu.Lock()
	d := e.draft
	if d == nil || d.DocumentId != record.Id {
		e.mu.Unlock()
		return
	}
	if d.Dirty(e.dirtyPred) {
		e.mu.Unlock()
		// The next save recreates the document server-side.
		e.notifier.Notify(notify.Notification{
			Kind:    notify.KindWarning,
			Message: "This document was deleted on another device; saving will restore it",
		})
		return
	}
	id := d.DocumentId
	e.draft = nil
	e.deferred = nil
	e.mu.Unlock()

	e.scheduler.Cancel(id)
	e.saver.Cancel(id)
	e.surface.SetContent("", false)
	e.notifier.Notify(notify.Notification{
		Kind:    notify.KindInfo,
		Message: "This document was deleted on another device",
	})
}

// OnRealtimeRecovered surfaces offline backups once per session after
// connectivity returns.
func (e *engineService) OnRealtimeRecovered() {
	pending := e.backups.ListAll()
	if len(pending) == 0 {
		return
	}

	e.mu.Lock()
	if e.recoveryNotified {
		e.mu.Unlock()
		return
	}
	e.recoveryNotified = true
	var openId uuid.UUID
	var open bool
	if e.draft != nil {
		openId = e.draft.DocumentId
		open = true
	}
	e.mu.Unlock()

	n := notify.Notification{
		Kind:    notify.KindInfo,
		Message: fmt.Sprintf("%d offline change(s) are waiting to sync", len(pending)),
	}
	if open {
		for _, backup := range pending {
			if backup.DocumentId == openId {
				n.Actions = e.recoveryPrompt(openId).Actions
				break
			}
		}
	}
	e.notifier.Notify(n)
}

func (e *engineService) conflictPrompt(documentId uuid.UUID) notify.Notification {
	return notify.Notification{
		Kind:    notify.KindWarning,
		Message: "This document changed on another device",
		Actions: []notify.Action{
			{Label: "Use their version", Invoke: func() { _ = e.ResolveConflict(documentId, entity.KeepRemote) }},
			{Label: "Keep my version", Invoke: func() { _ = e.ResolveConflict(documentId, entity.KeepLocal) }},
		},
	}
}

func (e *engineService) recoveryPrompt(documentId uuid.UUID) notify.Notification {
	return notify.Notification{
		Kind:    notify.KindInfo,
		Message: "Offline changes found for this document",
		Actions: []notify.Action{
			{Label: "Restore offline changes", Invoke: func() { _ = e.ApplyBackup(documentId) }},
			{Label: "Discard", Invoke: func() { e.DismissBackup(documentId) }},
		},
	}
}

// Close persists a safety backup for a dirty draft before the normal
// flush, so the work survives even if the flush attempt cannot reach
// the store in time.
func (e *engineService) Close() {
	e.mu.Lock()
	d := e.draft
	var id uuid.UUID
	var title, content string
	dirty := false
	if d != nil && d.Dirty(e.dirtyPred) {
		dirty = true
		id = d.DocumentId
		title = d.Title
		content = d.Content
	}
	e.mu.Unlock()

	if dirty {
		e.backups.Put(id, title, content)
	}
	e.CloseDocument()
}
