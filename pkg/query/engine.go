// Package query implements mnemo's query engine: the ten operations in
// spec §4.8 (remember, recall, forget, share, checkpoint, branch,
// merge, replay, verify, delegate) built on top of the storage,
// vectorindex, fulltext, cache, encryption, hashchain, and fusion
// packages. Logging follows the teacher's log/slog-with-key-value-pairs
// convention (see e.g. pkg/agent/llm_grpc.go).
package query

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/mnemo-db/mnemo/pkg/cache"
	"github.com/mnemo-db/mnemo/pkg/coldstorage"
	"github.com/mnemo-db/mnemo/pkg/embedding"
	"github.com/mnemo-db/mnemo/pkg/encryption"
	"github.com/mnemo-db/mnemo/pkg/fulltext"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/storage"
	"github.com/mnemo-db/mnemo/pkg/vectorindex"
)

// Engine bundles every collaborator the query operations are built
// against. All fields except Storage and Embedder are optional: a nil
// VectorIndex degrades semantic/hybrid recall, a nil FullText degrades
// lexical/hybrid recall to semantic-only, a nil Cipher disables
// encryption, a nil ColdStorage disables archive-on-forget.
type Engine struct {
	Storage     storage.Backend
	Embedder    embedding.Provider
	VectorIndex *vectorindex.Index
	FullText    *fulltext.Index
	Cache       *cache.Cache
	Cipher      *encryption.Cipher
	ColdStorage coldstorage.Store

	// DefaultAgentID is used by recall when no agent_id is supplied.
	DefaultAgentID string

	Logger *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

var agentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,256}$`)

func validateAgentID(agentID string) error {
	if !agentIDPattern.MatchString(agentID) {
		return mnemoerr.Validation("agent_id %q is not syntactically valid", agentID)
	}
	return nil
}

// nowRFC3339 renders t normalized to UTC "Z", matching the spec §9
// requirement that as_of/created_at strings compare lexicographically
// in the same order as time.
func nowRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// logBestEffort logs a non-fatal side-effect failure at Warn level per
// spec §7's propagation policy: event insertion, relation insertion,
// touch_memory, cache population, cold-storage archive, and index
// removal during forget must never fail the calling operation.
func (e *Engine) logBestEffort(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	e.logger().WarnContext(ctx, "best-effort side effect failed", "op", op, "error", err)
}
