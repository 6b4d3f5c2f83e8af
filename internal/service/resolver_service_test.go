package service

import (
	"testing"
	"time"

	"doc-sync-engine/internal/entity"

	"github.com/google/uuid"
)

func TestResolveDecisionPolicy(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	docId := uuid.New()

	remoteAt := func(t time.Time) entity.Document {
		return entity.Document{Id: docId, Title: "Doc", Content: "remote body", UpdatedAt: t}
	}

	tests := []struct {
		name         string
		in           ResolveInput
		wantDecision Decision
		wantNotice   string
	}{
		{
			name: "clean draft applies silently",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-time.Minute)),
				DraftDirty:      false,
				LastKnownRemote: now.Add(-2 * time.Hour),
				OpenedAt:        now.Add(-time.Hour),
				Now:             now,
			},
			wantDecision: DecisionApply,
		},
		{
			name: "focused editor defers",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-time.Minute)),
				DraftDirty:      true,
				EditorFocused:   true,
				LastKnownRemote: now.Add(-2 * time.Hour),
				OpenedAt:        now.Add(-time.Hour),
				Now:             now,
			},
			wantDecision: DecisionDefer,
		},
		{
			name: "young document echo applies",
			in: ResolveInput{
				Remote:     remoteAt(now.Add(-10 * time.Second)),
				DraftDirty: true,
				OpenedAt:   now.Add(-time.Hour),
				Now:        now,
			},
			wantDecision: DecisionApply,
		},
		{
			name: "recently opened applies",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-time.Hour)),
				DraftDirty:      true,
				LastKnownRemote: now.Add(-2 * time.Hour),
				OpenedAt:        now.Add(-3 * time.Second),
				Now:             now,
			},
			wantDecision: DecisionApply,
		},
		{
			name: "clearly newer remote applies with notice",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-time.Minute)),
				DraftDirty:      true,
				LastKnownRemote: now.Add(-10 * time.Minute),
				OpenedAt:        now.Add(-time.Hour),
				LocalContent:    "completely different local text",
				Now:             now,
			},
			wantDecision: DecisionApply,
			wantNotice:   "Updated from another device",
		},
		{
			name: "near-simultaneous similar content merges",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-time.Minute)),
				DraftDirty:      true,
				LastKnownRemote: now.Add(-90 * time.Second),
				OpenedAt:        now.Add(-time.Hour),
				LocalContent:    "remote body",
				Now:             now,
			},
			wantDecision: DecisionApply,
			wantNotice:   "Merging changes",
		},
		{
			name: "gap inside jitter tolerance applies",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-time.Minute)),
				DraftDirty:      true,
				LastKnownRemote: now.Add(-61 * time.Second),
				OpenedAt:        now.Add(-time.Hour),
				LocalContent:    "totally unrelated local text here",
				Now:             now,
			},
			wantDecision: DecisionApply,
		},
		{
			name: "divergent content flags a conflict",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-time.Minute)),
				DraftDirty:      true,
				LastKnownRemote: now.Add(-90 * time.Second),
				OpenedAt:        now.Add(-time.Hour),
				LocalContent:    "totally unrelated local text here",
				Now:             now,
			},
			wantDecision: DecisionFlag,
		},
		{
			name: "remote older than last known flags when divergent",
			in: ResolveInput{
				Remote:          remoteAt(now.Add(-10 * time.Minute)),
				DraftDirty:      true,
				LastKnownRemote: now.Add(-time.Minute),
				OpenedAt:        now.Add(-time.Hour),
				LocalContent:    "totally unrelated local text here",
				Now:             now,
			},
			wantDecision: DecisionFlag,
		},
	}

	svc := NewResolverService(testResolverConfig(), testLogger{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.Resolve(tt.in)
			if got.Decision != tt.wantDecision {
				t.Errorf("Decision = %q, want %q", got.Decision, tt.wantDecision)
			}
			if got.Notice != tt.wantNotice {
				t.Errorf("Notice = %q, want %q", got.Notice, tt.wantNotice)
			}
		})
	}
}

func TestSimilarityHeuristic(t *testing.T) {
	svc := NewResolverService(testResolverConfig(), testLogger{}).(*resolverService)

	tests := []struct {
		name   string
		local  string
		remote string
		want   bool
	}{
		{name: "identical", local: "same text", remote: "same text", want: true},
		{name: "both empty", local: "", remote: "", want: true},
		{name: "length ratio too low", local: "short", remote: "a very much longer body of text", want: false},
		{name: "same length different bytes", local: "aaaaaaaaaa", remote: "bbbbbbbbbb", want: false},
		{name: "small divergence", local: "shared prefix with one tweak!", remote: "shared prefix with one tweak?", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.similar(tt.local, tt.remote); got != tt.want {
				t.Errorf("similar(%q, %q) = %v, want %v", tt.local, tt.remote, got, tt.want)
			}
		})
	}
}
