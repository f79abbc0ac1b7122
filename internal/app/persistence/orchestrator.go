package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

// Outcome tells which backend resolved an operation.
type Outcome int

const (
	// OK means the remote store handled the operation.
	OK Outcome = iota
	// RemoteUnavailable means the remote failed and the local cache took over.
	RemoteUnavailable
	// Failed means both backends failed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case RemoteUnavailable:
		return "remote_unavailable"
	default:
		return "failed"
	}
}

// Result is returned by every orchestrator operation instead of a raised error,
// so callers branch on the fallback explicitly.
type Result struct {
	Outcome       Outcome
	Conversations []*domain.Conversation
	// Err holds the remote error for RemoteUnavailable, both errors for Failed.
	Err           error
}

func (r Result) Failed() bool { return r.Outcome == Failed }

// ErrNoRemote is reported when no remote store is configured.
var ErrNoRemote = errors.New("no remote store configured")

// Orchestrator applies the remote-first, local-fallback policy.
// Successful remote operations are mirrored into the local cache so that a
// later outage falls back to a blob holding everything written before.
// Every change to the blob goes through LocalCache.Update.
type Orchestrator struct {
	remote domain.RemoteStore
	local  domain.LocalCache

	// removed holds ids deleted remotely whose local removal failed. They are
	// filtered out of the blob until a later write drops them for good.
	mu      sync.Mutex
	removed map[domain.ConversationID]struct{}
}

// New builds an orchestrator. remote may be nil for local-only setups.
func New(remote domain.RemoteStore, local domain.LocalCache) *Orchestrator {
	return &Orchestrator{
		remote:  remote,
		local:   local,
		removed: map[domain.ConversationID]struct{}{},
	}
}

// Persist upserts the whole record, replacing any previous version.
func (o *Orchestrator) Persist(ctx context.Context, c *domain.Conversation) Result {
	log := observability.LoggerFromContext(ctx).With("conversation_id", c.ID)

	o.forget(c.ID)

	remoteErr := ErrNoRemote
	if o.remote != nil {
		remoteErr = o.remote.UpsertConversation(ctx, c)
	}

	localErr := o.upsertLocal(c)
	if remoteErr == nil {
		if localErr != nil {
			log.Warn("local mirror failed after remote save", "error", localErr)
		}
		return Result{Outcome: OK}
	}

	if localErr != nil {
		log.Error("persist failed on both backends", "remote_error", remoteErr, "local_error", localErr)
		return Result{Outcome: Failed, Err: errors.Join(remoteErr, localErr)}
	}

	log.Info("remote save failed, stored locally", "error", remoteErr)
	return Result{Outcome: RemoteUnavailable, Err: remoteErr}
}

// LoadAll returns every conversation, most recently updated first when the
// remote answers, in stored order when served from the local cache.
func (o *Orchestrator) LoadAll(ctx context.Context) Result {
	log := observability.LoggerFromContext(ctx)

	remoteErr := ErrNoRemote
	if o.remote != nil {
		convs, err := o.remote.ListConversations(ctx)
		if err == nil {
			if convs == nil {
				convs = []*domain.Conversation{}
			}
			merged, err := o.mirror(ctx, convs)
			if err != nil {
				log.Warn("local mirror failed after remote load", "error", err)
			}
			return Result{Outcome: OK, Conversations: merged}
		}
		remoteErr = err
	}

	convs, localErr := o.local.ReadAll()
	if localErr != nil {
		log.Error("load failed on both backends", "remote_error", remoteErr, "local_error", localErr)
		return Result{Outcome: Failed, Conversations: []*domain.Conversation{}, Err: errors.Join(remoteErr, localErr)}
	}
	convs = o.dropRemoved(convs)

	log.Info("remote load failed, using local cache", "error", remoteErr, "count", len(convs))
	return Result{Outcome: RemoteUnavailable, Conversations: convs, Err: remoteErr}
}

// Remove deletes a conversation by id.
func (o *Orchestrator) Remove(ctx context.Context, id domain.ConversationID) Result {
	log := observability.LoggerFromContext(ctx).With("conversation_id", id)

	remoteErr := ErrNoRemote
	if o.remote != nil {
		remoteErr = o.remote.DeleteConversation(ctx, id)
	}

	localErr := o.removeLocal(id)
	if remoteErr == nil {
		if localErr != nil {
			log.Warn("local mirror failed after remote delete", "error", localErr)
			o.remember(id)
		}
		return Result{Outcome: OK}
	}

	if localErr != nil {
		log.Error("remove failed on both backends", "remote_error", remoteErr, "local_error", localErr)
		return Result{Outcome: Failed, Err: errors.Join(remoteErr, localErr)}
	}

	log.Info("remote delete failed, removed locally", "error", remoteErr)
	return Result{Outcome: RemoteUnavailable, Err: remoteErr}
}

// CheckAvailability probes the remote store once. A failure only means the
// application runs local-only.
func (o *Orchestrator) CheckAvailability(ctx context.Context) bool {
	if o.remote == nil {
		return false
	}
	n, err := o.remote.CountConversations(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("remote store unavailable", "error", err)
		return false
	}
	observability.LoggerFromContext(ctx).Info("remote store available", "conversations", n)
	return true
}

func (o *Orchestrator) upsertLocal(c *domain.Conversation) error {
	return o.updateLocal(func(convs []*domain.Conversation) []*domain.Conversation {
		for i, existing := range convs {
			if existing.ID == c.ID {
				convs[i] = c
				return convs
			}
		}
		return append([]*domain.Conversation{c}, convs...)
	})
}

func (o *Orchestrator) removeLocal(id domain.ConversationID) error {
	return o.updateLocal(func(convs []*domain.Conversation) []*domain.Conversation {
		kept := make([]*domain.Conversation, 0, len(convs))
		for _, c := range convs {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		return kept
	})
}

// mirror replaces the local blob with the remote view. Conversations that
// only exist locally (saved during an earlier outage) are kept and merged into
// the returned list; they reach the remote again on their next Persist.
func (o *Orchestrator) mirror(ctx context.Context, remote []*domain.Conversation) ([]*domain.Conversation, error) {
	seen := make(map[domain.ConversationID]bool, len(remote))
	for _, c := range remote {
		seen[c.ID] = true
	}

	var merged []*domain.Conversation
	err := o.updateLocal(func(cached []*domain.Conversation) []*domain.Conversation {
		var localOnly []*domain.Conversation
		for _, c := range o.dropRemoved(cached) {
			if !seen[c.ID] {
				localOnly = append(localOnly, c)
			}
		}

		merged = remote
		if len(localOnly) > 0 {
			observability.LoggerFromContext(ctx).Info("keeping local-only conversations", "count", len(localOnly))
			merged = append(append([]*domain.Conversation{}, remote...), localOnly...)
			sort.SliceStable(merged, func(i, j int) bool {
				return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
			})
		}
		return merged
	})
	if merged == nil {
		merged = remote
	}
	return merged, err
}

// updateLocal applies fn to the blob in one atomic step and drops every id
// deleted remotely while the blob could not be written.
func (o *Orchestrator) updateLocal(fn func([]*domain.Conversation) []*domain.Conversation) error {
	removed := o.removedIDs()
	err := o.local.Update(func(convs []*domain.Conversation) []*domain.Conversation {
		return without(fn(convs), removed)
	})
	if err != nil {
		return pkgerrors.Wrap(err, "update local cache")
	}

	o.mu.Lock()
	for id := range removed {
		delete(o.removed, id)
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) remember(id domain.ConversationID) {
	o.mu.Lock()
	o.removed[id] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) forget(id domain.ConversationID) {
	o.mu.Lock()
	delete(o.removed, id)
	o.mu.Unlock()
}

func (o *Orchestrator) removedIDs() map[domain.ConversationID]struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make(map[domain.ConversationID]struct{}, len(o.removed))
	for id := range o.removed {
		ids[id] = struct{}{}
	}
	return ids
}

func (o *Orchestrator) dropRemoved(convs []*domain.Conversation) []*domain.Conversation {
	return without(convs, o.removedIDs())
}

func without(convs []*domain.Conversation, ids map[domain.ConversationID]struct{}) []*domain.Conversation {
	if len(ids) == 0 {
		return convs
	}
	kept := make([]*domain.Conversation, 0, len(convs))
	for _, c := range convs {
		if _, gone := ids[c.ID]; !gone {
			kept = append(kept, c)
		}
	}
	return kept
}
