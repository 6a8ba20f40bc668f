// Package coldstorage implements the optional archival trait from spec
// §4.9: archive/restore/list/delete for memories moved out of the hot
// path, keyed as `{prefix}/{agent_id}/{id}.json`. An in-memory
// implementation suffices for tests; an S3-compatible implementation
// serves production (grounded on the rest of the example pack's
// object-storage clients — see DESIGN.md).
package coldstorage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// Store is the cold-storage capability set.
type Store interface {
	Archive(ctx context.Context, record *model.MemoryRecord) error
	Restore(ctx context.Context, id string) (*model.MemoryRecord, error)
	ListArchived(ctx context.Context, agentID string, limit int) ([]*model.MemoryRecord, error)
	DeleteArchived(ctx context.Context, id string) error
	IsArchived(ctx context.Context, id string) (bool, error)
}

// Key renders the `{prefix}/{agent_id}/{id}.json` key spec §4.9 names.
func Key(prefix, agentID, id string) string {
	if prefix == "" {
		prefix = "cold"
	}
	return prefix + "/" + agentID + "/" + id + ".json"
}

// InMemory is a Store backed by a plain map, sufficient for tests and
// for the embedded single-file deployment mode.
type InMemory struct {
	mu     sync.RWMutex
	prefix string
	byKey  map[string][]byte
	keyOf  map[string]string // id -> key, so Restore/Delete/IsArchived don't need the agent id
}

// NewInMemory creates an empty in-memory cold store.
func NewInMemory(prefix string) *InMemory {
	return &InMemory{prefix: prefix, byKey: make(map[string][]byte), keyOf: make(map[string]string)}
}

func (s *InMemory) Archive(ctx context.Context, record *model.MemoryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return mnemoerr.Internal("marshaling memory for cold storage", err)
	}
	key := Key(s.prefix, record.AgentID, record.ID)
	s.mu.Lock()
	s.byKey[key] = data
	s.keyOf[record.ID] = key
	s.mu.Unlock()
	return nil
}

func (s *InMemory) Restore(ctx context.Context, id string) (*model.MemoryRecord, error) {
	s.mu.RLock()
	key, ok := s.keyOf[id]
	var data []byte
	if ok {
		data = s.byKey[key]
	}
	s.mu.RUnlock()
	if !ok {
		return nil, mnemoerr.NotFound("archived memory %q", id)
	}
	var m model.MemoryRecord
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, mnemoerr.Internal("unmarshaling archived memory", err)
	}
	return &m, nil
}

func (s *InMemory) ListArchived(ctx context.Context, agentID string, limit int) ([]*model.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.MemoryRecord
	ids := make([]string, 0, len(s.keyOf))
	for id := range s.keyOf {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		data := s.byKey[s.keyOf[id]]
		var m model.MemoryRecord
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		if agentID != "" && m.AgentID != agentID {
			continue
		}
		out = append(out, &m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) DeleteArchived(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keyOf[id]
	if !ok {
		return mnemoerr.NotFound("archived memory %q", id)
	}
	delete(s.byKey, key)
	delete(s.keyOf, id)
	return nil
}

func (s *InMemory) IsArchived(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keyOf[id]
	return ok, nil
}

var _ Store = (*InMemory)(nil)
