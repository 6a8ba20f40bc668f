// Package embedded implements the single-file storage backend (spec
// §6) on top of go.etcd.io/bbolt: one bucket per entity, JSON
// serialization, ids as keys. Grounded on the bucket-per-entity /
// full-bucket-scan pattern used by the pack's BoltDB-backed stores
// (see DESIGN.md).
package embedded

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

var buckets = []string{
	"memories", "events", "relations", "acls", "delegations",
	"checkpoints", "profiles", "watermarks",
}

// Backend is the bbolt-backed embedded storage.Backend.
type Backend struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a single-file backend at path.
func Open(path string) (*Backend, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, mnemoerr.Storage("opening embedded database", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, mnemoerr.Storage("initializing embedded buckets", err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return mnemoerr.Storage("closing embedded database", err)
	}
	return nil
}

func put(tx *bbolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return mnemoerr.Internal("marshaling record", err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

func get(tx *bbolt.Tx, bucket, key string, v any) error {
	data := tx.Bucket([]byte(bucket)).Get([]byte(key))
	if data == nil {
		return mnemoerr.NotFound("%s %q", bucket, key)
	}
	return json.Unmarshal(data, v)
}

// --- Memories ---

func (b *Backend) InsertMemory(ctx context.Context, m *model.MemoryRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "memories", m.ID, m)
	})
}

func (b *Backend) GetMemory(ctx context.Context, id string) (*model.MemoryRecord, error) {
	var m model.MemoryRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		return get(tx, "memories", id, &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *Backend) UpdateMemory(ctx context.Context, m *model.MemoryRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte("memories")).Get([]byte(m.ID)) == nil {
			return mnemoerr.NotFound("memory %q", m.ID)
		}
		return put(tx, "memories", m.ID, m)
	})
}

func (b *Backend) SoftDeleteMemory(ctx context.Context, id string, deletedAt time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		var m model.MemoryRecord
		if err := get(tx, "memories", id, &m); err != nil {
			return err
		}
		m.DeletedAt = &deletedAt
		return put(tx, "memories", id, &m)
	})
}

func (b *Backend) HardDeleteMemory(ctx context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("memories")).Delete([]byte(id))
	})
}

func (b *Backend) ListMemories(ctx context.Context, filter storage.MemoryFilter) ([]*model.MemoryRecord, error) {
	var out []*model.MemoryRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("memories")).ForEach(func(_, data []byte) error {
			var m model.MemoryRecord
			if err := json.Unmarshal(data, &m); err != nil {
				return err
			}
			if memoryMatches(&m, filter) {
				out = append(out, &m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing memories", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	out = applyLimitOffset(out, filter.Limit, filter.Offset)
	return out, nil
}

func memoryMatches(m *model.MemoryRecord, f storage.MemoryFilter) bool {
	if !f.IncludeDeleted && m.DeletedAt != nil {
		return false
	}
	if f.AgentID != "" && m.AgentID != f.AgentID {
		return false
	}
	if f.MemoryType != "" && m.MemoryType != f.MemoryType {
		return false
	}
	if f.Scope != "" && m.Scope != f.Scope {
		return false
	}
	if f.MinImportance > 0 && m.Importance < f.MinImportance {
		return false
	}
	if f.OrgID != "" && m.OrgID != f.OrgID {
		return false
	}
	if f.ThreadID != "" && m.ThreadID != f.ThreadID {
		return false
	}
	if f.AsOf != nil && m.UpdatedAt.After(*f.AsOf) {
		return false
	}
	for _, tag := range f.Tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

func applyLimitOffset(out []*model.MemoryRecord, limit, offset int) []*model.MemoryRecord {
	if offset > 0 {
		if offset >= len(out) {
			return nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (b *Backend) ListMemoriesByAgentOrdered(ctx context.Context, agentID, threadID string, limit int) ([]*model.MemoryRecord, error) {
	return b.ListMemories(ctx, storage.MemoryFilter{
		AgentID: agentID, ThreadID: threadID, IncludeDeleted: true, Limit: limit,
	})
}

func (b *Backend) ListMemoriesSince(ctx context.Context, agentID string, since time.Time, limit int) ([]*model.MemoryRecord, error) {
	all, err := b.ListMemories(ctx, storage.MemoryFilter{AgentID: agentID, IncludeDeleted: true})
	if err != nil {
		return nil, err
	}
	out := make([]*model.MemoryRecord, 0, len(all))
	for _, m := range all {
		if m.UpdatedAt.After(since) {
			out = append(out, m)
		}
	}
	return applyLimitOffset(out, limit, 0), nil
}

func (b *Backend) ListAccessibleMemoryIDs(ctx context.Context, agentID string, limit int) ([]string, error) {
	ids := make(map[string]bool)
	err := b.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte("memories")).ForEach(func(_, data []byte) error {
			var m model.MemoryRecord
			if err := json.Unmarshal(data, &m); err != nil {
				return err
			}
			if m.DeletedAt != nil {
				return nil
			}
			if m.AgentID == agentID || m.Scope == model.ScopePublic || m.Scope == model.ScopeGlobal {
				ids[m.ID] = true
			}
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket([]byte("acls")).ForEach(func(_, data []byte) error {
			var a model.Acl
			if err := json.Unmarshal(data, &a); err != nil {
				return err
			}
			if a.Principal == "agent:"+agentID && a.Active(time.Now()) {
				ids[a.MemoryID] = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing accessible memory ids", err)
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (b *Backend) GetLatestMemoryHash(ctx context.Context, agentID, threadID string) ([32]byte, error) {
	var zero [32]byte
	records, err := b.ListMemoriesByAgentOrdered(ctx, agentID, threadID, 0)
	if err != nil {
		return zero, err
	}
	if len(records) == 0 {
		return zero, mnemoerr.NotFound("no memory chain for agent %q thread %q", agentID, threadID)
	}
	return records[len(records)-1].ContentHash, nil
}

func (b *Backend) TouchMemory(ctx context.Context, id string, at time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		var m model.MemoryRecord
		if err := get(tx, "memories", id, &m); err != nil {
			return err
		}
		m.AccessCount++
		m.LastAccessedAt = at
		return put(tx, "memories", id, &m)
	})
}

func (b *Backend) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("memories"))
		return bucket.ForEach(func(key, data []byte) error {
			var m model.MemoryRecord
			if err := json.Unmarshal(data, &m); err != nil {
				return err
			}
			if m.DeletedAt != nil || m.ExpiresAt == nil || m.ExpiresAt.After(now) {
				return nil
			}
			m.DeletedAt = &now
			data, err := json.Marshal(&m)
			if err != nil {
				return err
			}
			count++
			return bucket.Put(key, data)
		})
	})
	if err != nil {
		return 0, mnemoerr.Storage("cleaning up expired memories", err)
	}
	return count, nil
}

// --- Events ---

func (b *Backend) InsertEvent(ctx context.Context, e *model.AgentEvent) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "events", e.ID, e)
	})
}

func (b *Backend) listEvents(ctx context.Context, match func(*model.AgentEvent) bool, limit int) ([]*model.AgentEvent, error) {
	var out []*model.AgentEvent
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("events")).ForEach(func(_, data []byte) error {
			var e model.AgentEvent
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}
			if match(&e) {
				out = append(out, &e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing events", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (b *Backend) ListEventsByThread(ctx context.Context, threadID string, limit int) ([]*model.AgentEvent, error) {
	return b.listEvents(ctx, func(e *model.AgentEvent) bool { return e.ThreadID == threadID }, limit)
}

func (b *Backend) ListEventsByAgent(ctx context.Context, agentID string, limit int) ([]*model.AgentEvent, error) {
	return b.listEvents(ctx, func(e *model.AgentEvent) bool { return e.AgentID == agentID }, limit)
}

func (b *Backend) GetLatestEventHash(ctx context.Context, agentID, threadID string) ([32]byte, error) {
	var zero [32]byte
	var events []*model.AgentEvent
	var err error
	if threadID != "" {
		events, err = b.ListEventsByThread(ctx, threadID, 0)
	} else {
		events, err = b.ListEventsByAgent(ctx, agentID, 0)
	}
	if err != nil {
		return zero, err
	}
	if len(events) == 0 {
		return zero, mnemoerr.NotFound("no event chain for agent %q thread %q", agentID, threadID)
	}
	return events[len(events)-1].ContentHash, nil
}

// --- Relations ---

func (b *Backend) InsertRelation(ctx context.Context, r *model.Relation) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "relations", r.ID, r)
	})
}

func (b *Backend) ListRelationsForMemory(ctx context.Context, memoryID string) ([]model.Relation, error) {
	var out []model.Relation
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("relations")).ForEach(func(_, data []byte) error {
			var r model.Relation
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			if r.FromID == memoryID || r.ToID == memoryID {
				out = append(out, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing relations", err)
	}
	return out, nil
}

// --- ACLs ---

func (b *Backend) InsertACL(ctx context.Context, a *model.Acl) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "acls", a.ID, a)
	})
}

func (b *Backend) ListACLsForMemory(ctx context.Context, memoryID string) ([]model.Acl, error) {
	var out []model.Acl
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("acls")).ForEach(func(_, data []byte) error {
			var a model.Acl
			if err := json.Unmarshal(data, &a); err != nil {
				return err
			}
			if a.MemoryID == memoryID {
				out = append(out, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing acls for memory", err)
	}
	return out, nil
}

func (b *Backend) ListACLsForPrincipal(ctx context.Context, principal string) ([]model.Acl, error) {
	var out []model.Acl
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("acls")).ForEach(func(_, data []byte) error {
			var a model.Acl
			if err := json.Unmarshal(data, &a); err != nil {
				return err
			}
			if a.Principal == principal {
				out = append(out, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing acls for principal", err)
	}
	return out, nil
}

// --- Delegations ---

func (b *Backend) InsertDelegation(ctx context.Context, d *model.Delegation) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "delegations", d.ID, d)
	})
}

func (b *Backend) RevokeDelegation(ctx context.Context, id string, revokedAt time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		var d model.Delegation
		if err := get(tx, "delegations", id, &d); err != nil {
			return err
		}
		d.RevokedAt = &revokedAt
		return put(tx, "delegations", id, &d)
	})
}

func (b *Backend) ListDelegationsForDelegate(ctx context.Context, delegateID string) ([]model.Delegation, error) {
	var out []model.Delegation
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("delegations")).ForEach(func(_, data []byte) error {
			var d model.Delegation
			if err := json.Unmarshal(data, &d); err != nil {
				return err
			}
			if d.DelegateID == delegateID {
				out = append(out, d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing delegations", err)
	}
	return out, nil
}

// --- Checkpoints ---

func (b *Backend) InsertCheckpoint(ctx context.Context, c *model.Checkpoint) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "checkpoints", c.ID, c)
	})
}

func (b *Backend) GetCheckpoint(ctx context.Context, id string) (*model.Checkpoint, error) {
	var c model.Checkpoint
	err := b.db.View(func(tx *bbolt.Tx) error {
		return get(tx, "checkpoints", id, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (b *Backend) ListCheckpointsByBranch(ctx context.Context, agentID, branchName string) ([]*model.Checkpoint, error) {
	var out []*model.Checkpoint
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("checkpoints")).ForEach(func(_, data []byte) error {
			var c model.Checkpoint
			if err := json.Unmarshal(data, &c); err != nil {
				return err
			}
			if c.AgentID == agentID && c.BranchName == branchName {
				out = append(out, &c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing checkpoints", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *Backend) ListBranches(ctx context.Context, agentID string) ([]string, error) {
	names := make(map[string]bool)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("checkpoints")).ForEach(func(_, data []byte) error {
			var c model.Checkpoint
			if err := json.Unmarshal(data, &c); err != nil {
				return err
			}
			if c.AgentID == agentID {
				names[c.BranchName] = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, mnemoerr.Storage("listing branches", err)
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// --- Agent profiles ---

func (b *Backend) GetAgentProfile(ctx context.Context, agentID string) (*model.AgentProfile, error) {
	var p model.AgentProfile
	err := b.db.View(func(tx *bbolt.Tx) error {
		return get(tx, "profiles", agentID, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *Backend) UpsertAgentProfile(ctx context.Context, p *model.AgentProfile) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "profiles", p.AgentID, p)
	})
}

// --- Watermarks ---

func (b *Backend) GetWatermark(ctx context.Context, name string) (*model.Watermark, error) {
	var w model.Watermark
	err := b.db.View(func(tx *bbolt.Tx) error {
		return get(tx, "watermarks", name, &w)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (b *Backend) SetWatermark(ctx context.Context, w *model.Watermark) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, "watermarks", w.Name, w)
	})
}

var _ storage.Backend = (*Backend)(nil)
