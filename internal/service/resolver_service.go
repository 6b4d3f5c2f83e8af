package service

import (
	"time"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/pkg/lexical"
)

type Decision string

const (
	// DecisionApply means the remote record overwrites local state with
	// no user interaction.
	DecisionApply Decision = "apply_remote_silently"
	// DecisionDefer means the user is actively composing; the update is
	// parked and re-evaluated once focus is lost.
	DecisionDefer Decision = "defer"
	// DecisionFlag means automatic resolution is unsafe; a
	// ConflictRecord must be created for an explicit user choice.
	DecisionFlag Decision = "flag_conflict"
)

// Resolution is the resolver's verdict plus an optional transient
// notice to show the user when applying silently.
type Resolution struct {
	Decision Decision
	Notice   string
}

// ResolveInput is everything the policy consults. It is assembled by
// the engine so the resolver itself stays free of mutable state.
type ResolveInput struct {
	Remote entity.Document
	// DraftDirty reports unsaved local changes.
	DraftDirty bool
	// EditorFocused reports whether the user is actively composing.
	EditorFocused bool
	// LastKnownRemote is the last server timestamp observed for this
	// document. Zero if never observed.
	LastKnownRemote time.Time
	// OpenedAt is when the document was loaded into the editor.
	OpenedAt     time.Time
	LocalContent string
	Now          time.Time
}

type IResolverService interface {
	Resolve(in ResolveInput) Resolution
}

// resolverService implements the short-circuit decision policy. It is a
// heuristic that favors availability over strict consistency: silent
// applies are preferred wherever the timestamps or content make a real
// divergence unlikely.
type resolverService struct {
	cfg    config.ResolverConfig
	logger logger.ILogger
}

func NewResolverService(cfg config.ResolverConfig, log logger.ILogger) IResolverService {
	return &resolverService{cfg: cfg, logger: log}
}

func (s *resolverService) Resolve(in ResolveInput) Resolution {
	// 1. Nothing unsaved, nothing to lose.
	if !in.DraftDirty {
		return Resolution{Decision: DecisionApply}
	}

	// 2. Never mutate content under the user's cursor.
	if in.EditorFocused {
		return Resolution{Decision: DecisionDefer}
	}

	// 3. A very young document with no previously observed remote
	// timestamp is almost certainly the echo of our own create.
	age := in.Now.Sub(in.Remote.UpdatedAt)
	if age >= 0 && age < s.cfg.NewDocumentAge && in.LastKnownRemote.IsZero() {
		return Resolution{Decision: DecisionApply}
	}

	// 4. Caches are still catching up right after open; a conflict
	// prompt here would be a false positive.
	if in.Now.Sub(in.OpenedAt) < s.cfg.RecentlyOpenedWindow {
		return Resolution{Decision: DecisionApply}
	}

	gap := in.Remote.UpdatedAt.Sub(in.LastKnownRemote)

	// 5. Clearly newer: another device finished its work long after our
	// last sync point.
	if !in.LastKnownRemote.IsZero() && gap > s.cfg.ClearlyNewerGap {
		return Resolution{Decision: DecisionApply, Notice: "Updated from another device"}
	}

	// 6. Near-simultaneous typing with highly similar content is not a
	// real divergence.
	if !in.LastKnownRemote.IsZero() && gap > 0 && s.similar(in.LocalContent, in.Remote.Content) {
		return Resolution{Decision: DecisionApply, Notice: "Merging changes"}
	}

	// 7. Inside jitter tolerance, or timestamps too unreliable to
	// justify interrupting the user.
	absGap := gap
	if absGap < 0 {
		absGap = -absGap
	}
	if absGap <= s.cfg.JitterTolerance || in.Remote.UpdatedAt.IsZero() || in.LastKnownRemote.IsZero() {
		return Resolution{Decision: DecisionApply}
	}

	// 8. Real divergence: the user decides.
	s.logger.Info("ResolverService", "Flagging conflict", map[string]interface{}{
		"document_id": in.Remote.Id,
		"gap_ms":      gap.Milliseconds(),
	})
	return Resolution{Decision: DecisionFlag}
}

// similar is a cheap approximation: length ratio combined with a
// bounded prefix sample, not a full diff. It can misjudge large
// restructurings as similar and small unrelated edits as conflicts;
// that trade-off is intentional and the thresholds are configuration.
func (s *resolverService) similar(localContent, rawRemote string) bool {
	if localContent == rawRemote {
		return true
	}
	// Compare visible text so formatting-only edits in the serialized
	// editor state do not read as divergence.
	local := lexical.PlainText(localContent)
	remoteContent := lexical.PlainText(rawRemote)
	if local == remoteContent {
		return true
	}
	longer, shorter := len(local), len(remoteContent)
	if shorter > longer {
		longer, shorter = shorter, longer
	}
	if longer == 0 {
		return true
	}
	if float64(shorter)/float64(longer) < s.cfg.SimilarityCutoff {
		return false
	}

	n := s.cfg.SimilarityPrefixLen
	if n > shorter {
		n = shorter
	}
	if n == 0 {
		return true
	}
	match := 0
	for i := 0; i < n; i++ {
		if local[i] == remoteContent[i] {
			match++
		}
	}
	return float64(match)/float64(n) >= s.cfg.SimilarityCutoff
}
