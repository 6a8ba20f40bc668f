// Package sync implements mnemo's watermark-driven replication between
// a local and a remote storage backend (spec §4.10): push, pull, and a
// last-writer-wins full_sync.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

// Engine replicates memories between a local and a remote
// storage.Backend. Watermarks are persisted on the local backend only
// — the remote is treated as a plain storage target, not a sync peer
// with its own bookkeeping, matching spec §4.10's L/R asymmetry.
type Engine struct {
	Local  storage.Backend
	Remote storage.Backend
	Logger *slog.Logger

	// Limit bounds each listing call. Zero means 10000.
	Limit int
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) limit() int {
	if e.Limit > 0 {
		return e.Limit
	}
	return 10000
}

func watermarkName(direction, agentID string) string {
	return "sync:" + direction + ":" + agentID
}

// PushResult reports how many memories push moved.
type PushResult struct {
	Pushed int
}

// Push reads L's push watermark (defaulting to since when unset),
// lists L's memories updated after that point, upserts each into R,
// and on success advances L's push watermark to now (spec §4.10).
func (e *Engine) Push(ctx context.Context, agentID string, since time.Time) (*PushResult, error) {
	effectiveSince := since
	if wm, err := e.Local.GetWatermark(ctx, watermarkName("push", agentID)); err == nil {
		effectiveSince = wm.Value
	} else if mnemoerr.KindOf(err) != mnemoerr.KindNotFound {
		return nil, mnemoerr.Storage("reading push watermark", err)
	}

	records, err := e.Local.ListMemoriesSince(ctx, agentID, effectiveSince, e.limit())
	if err != nil {
		return nil, mnemoerr.Storage("listing local memories since watermark", err)
	}

	for _, r := range records {
		if err := upsert(ctx, e.Remote, r); err != nil {
			return nil, mnemoerr.Storage("pushing memory to remote", err)
		}
	}

	now := time.Now()
	if err := e.Local.SetWatermark(ctx, &model.Watermark{Name: watermarkName("push", agentID), Value: now}); err != nil {
		e.logger().WarnContext(ctx, "sync: failed to advance push watermark", "agent_id", agentID, "error", err)
	}
	return &PushResult{Pushed: len(records)}, nil
}

// PullResult reports how many memories pull moved.
type PullResult struct {
	Pulled int
}

// Pull is push's mirror image: reads L's pull watermark, lists R's
// memories updated after that point, upserts each into L, advances
// L's pull watermark to now (spec §4.10).
func (e *Engine) Pull(ctx context.Context, agentID string, since time.Time) (*PullResult, error) {
	effectiveSince := since
	if wm, err := e.Local.GetWatermark(ctx, watermarkName("pull", agentID)); err == nil {
		effectiveSince = wm.Value
	} else if mnemoerr.KindOf(err) != mnemoerr.KindNotFound {
		return nil, mnemoerr.Storage("reading pull watermark", err)
	}

	records, err := e.Remote.ListMemoriesSince(ctx, agentID, effectiveSince, e.limit())
	if err != nil {
		return nil, mnemoerr.Storage("listing remote memories since watermark", err)
	}

	for _, r := range records {
		if err := upsert(ctx, e.Local, r); err != nil {
			return nil, mnemoerr.Storage("pulling memory from remote", err)
		}
	}

	now := time.Now()
	if err := e.Local.SetWatermark(ctx, &model.Watermark{Name: watermarkName("pull", agentID), Value: now}); err != nil {
		e.logger().WarnContext(ctx, "sync: failed to advance pull watermark", "agent_id", agentID, "error", err)
	}
	return &PullResult{Pulled: len(records)}, nil
}

// Conflict records a memory present in both backends with diverging
// updated_at timestamps (spec §4.10). full_sync resolves these
// last-writer-wins in favor of the local copy but still reports them.
type Conflict struct {
	MemoryID      string
	LocalUpdated  time.Time
	RemoteUpdated time.Time
}

// FullSyncResult reports full_sync's outcome.
type FullSyncResult struct {
	Pushed    int
	Pulled    int
	Conflicts []Conflict
}

// FullSync reconciles L and R unconditionally (spec §4.10):
// memories present in both with different updated_at are reported as
// conflicts (local wins); every local memory is pushed regardless of
// watermark; every remote memory absent locally is pulled.
func (e *Engine) FullSync(ctx context.Context, agentID string, since time.Time) (*FullSyncResult, error) {
	localRecords, err := e.Local.ListMemoriesSince(ctx, agentID, since, e.limit())
	if err != nil {
		return nil, mnemoerr.Storage("listing local memories for full sync", err)
	}
	remoteRecords, err := e.Remote.ListMemoriesSince(ctx, agentID, since, e.limit())
	if err != nil {
		return nil, mnemoerr.Storage("listing remote memories for full sync", err)
	}

	remoteByID := make(map[string]*model.MemoryRecord, len(remoteRecords))
	for _, r := range remoteRecords {
		remoteByID[r.ID] = r
	}
	localByID := make(map[string]*model.MemoryRecord, len(localRecords))
	for _, r := range localRecords {
		localByID[r.ID] = r
	}

	result := &FullSyncResult{}
	for _, local := range localRecords {
		if remote, ok := remoteByID[local.ID]; ok && !remote.UpdatedAt.Equal(local.UpdatedAt) {
			result.Conflicts = append(result.Conflicts, Conflict{
				MemoryID: local.ID, LocalUpdated: local.UpdatedAt, RemoteUpdated: remote.UpdatedAt,
			})
		}
		if err := upsert(ctx, e.Remote, local); err != nil {
			return nil, mnemoerr.Storage("pushing memory during full sync", err)
		}
		result.Pushed++
	}

	for _, remote := range remoteRecords {
		if _, ok := localByID[remote.ID]; ok {
			continue
		}
		if err := upsert(ctx, e.Local, remote); err != nil {
			return nil, mnemoerr.Storage("pulling memory during full sync", err)
		}
		result.Pulled++
	}

	return result, nil
}

// upsert inserts r into backend, falling back to update when a row
// with the same id already exists — storage.Backend has no native
// upsert method, so sync composes the two it does have.
func upsert(ctx context.Context, backend storage.Backend, r *model.MemoryRecord) error {
	if _, err := backend.GetMemory(ctx, r.ID); err != nil {
		if mnemoerr.KindOf(err) == mnemoerr.KindNotFound {
			return backend.InsertMemory(ctx, r)
		}
		return err
	}
	return backend.UpdateMemory(ctx, r)
}
