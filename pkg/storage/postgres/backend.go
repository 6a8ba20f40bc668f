// Package postgres implements the server-mode storage backend (spec
// §6) on github.com/jackc/pgx/v5, with native array/JSONB columns and
// golang-migrate-managed schema, grounded on the teacher's
// pkg/database connection-pooling and embedded-migration conventions
// (see DESIGN.md). entgo.io/ent is not used: ent requires `go
// generate`-driven codegen, which this exercise cannot run, so SQL is
// hand-written against pgx instead.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

// Backend is the pgx-backed server storage.Backend.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, applies migrations, and returns a ready
// Backend.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{pool: pool}, nil
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func jsonbOf(v map[string]any) ([]byte, error) {
	if v == nil {
		v = map[string]any{}
	}
	return json.Marshal(v)
}

func parseJSONB(data []byte) map[string]any {
	out := map[string]any{}
	if len(data) == 0 {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

func toBytea(h [32]byte) []byte { return h[:] }

func fromBytea(b []byte) [32]byte {
	var h [32]byte
	copy(h[:], b)
	return h
}

// --- Memories ---

const memoryColumns = `id, agent_id, content, memory_type, scope, importance, tags, metadata,
	embedding, content_hash, prev_hash, has_prev_hash, source_type, source_id,
	consolidation_state, access_count, org_id, thread_id, created_at, updated_at,
	last_accessed_at, expires_at, deleted_at, decay_rate, decay_function, created_by,
	version, prev_version_id, quarantined, quarantine_reason`

func scanMemory(row pgx.Row) (*model.MemoryRecord, error) {
	var m model.MemoryRecord
	var metadataRaw, prevHash []byte
	var lastAccessed *time.Time
	err := row.Scan(
		&m.ID, &m.AgentID, &m.Content, &m.MemoryType, &m.Scope, &m.Importance, &m.Tags, &metadataRaw,
		&m.Embedding, &contentHashScan{&m.ContentHash}, &prevHash, &m.HasPrevHash, &m.SourceType, &m.SourceID,
		&m.ConsolidationState, &m.AccessCount, &m.OrgID, &m.ThreadID, &m.CreatedAt, &m.UpdatedAt,
		&lastAccessed, &m.ExpiresAt, &m.DeletedAt, &m.DecayRate, &m.DecayFunction, &m.CreatedBy,
		&m.Version, &m.PrevVersionID, &m.Quarantined, &m.QuarantineReason,
	)
	if err != nil {
		return nil, err
	}
	m.Metadata = parseJSONB(metadataRaw)
	if prevHash != nil {
		m.PrevHash = fromBytea(prevHash)
	}
	if lastAccessed != nil {
		m.LastAccessedAt = *lastAccessed
	}
	return &m, nil
}

// contentHashScan adapts a fixed [32]byte field to pgx's []byte
// scanning for the bytea column.
type contentHashScan struct {
	dst *[32]byte
}

func (c *contentHashScan) Scan(src any) error {
	b, _ := src.([]byte)
	*c.dst = fromBytea(b)
	return nil
}

func (b *Backend) InsertMemory(ctx context.Context, m *model.MemoryRecord) error {
	metadata, err := jsonbOf(m.Metadata)
	if err != nil {
		return mnemoerr.Internal("marshaling memory metadata", err)
	}
	var prevHash any
	if m.HasPrevHash {
		prevHash = toBytea(m.PrevHash)
	}
	var lastAccessed any
	if !m.LastAccessedAt.IsZero() {
		lastAccessed = m.LastAccessedAt
	}
	_, err = b.pool.Exec(ctx, `INSERT INTO memories (`+memoryColumns+`) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`,
		m.ID, m.AgentID, m.Content, m.MemoryType, m.Scope, m.Importance, m.Tags, metadata,
		m.Embedding, toBytea(m.ContentHash), prevHash, m.HasPrevHash, m.SourceType, m.SourceID,
		m.ConsolidationState, m.AccessCount, m.OrgID, m.ThreadID, m.CreatedAt, m.UpdatedAt,
		lastAccessed, m.ExpiresAt, m.DeletedAt, m.DecayRate, m.DecayFunction, m.CreatedBy,
		m.Version, m.PrevVersionID, m.Quarantined, m.QuarantineReason,
	)
	if err != nil {
		return mnemoerr.Storage("inserting memory", err)
	}
	return nil
}

func (b *Backend) GetMemory(ctx context.Context, id string) (*model.MemoryRecord, error) {
	row := b.pool.QueryRow(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = $1`, id)
	m, err := scanMemory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, mnemoerr.NotFound("memory %q", id)
		}
		return nil, mnemoerr.Storage("fetching memory", err)
	}
	return m, nil
}

func (b *Backend) UpdateMemory(ctx context.Context, m *model.MemoryRecord) error {
	metadata, err := jsonbOf(m.Metadata)
	if err != nil {
		return mnemoerr.Internal("marshaling memory metadata", err)
	}
	tag, err := b.pool.Exec(ctx, `UPDATE memories SET
		content=$2, memory_type=$3, scope=$4, importance=$5, tags=$6, metadata=$7,
		embedding=$8, access_count=$9, updated_at=$10, last_accessed_at=$11, expires_at=$12,
		deleted_at=$13, decay_rate=$14, decay_function=$15, version=$16, prev_version_id=$17,
		quarantined=$18, quarantine_reason=$19, consolidation_state=$20
		WHERE id=$1`,
		m.ID, m.Content, m.MemoryType, m.Scope, m.Importance, m.Tags, metadata,
		m.Embedding, m.AccessCount, m.UpdatedAt, nilIfZero(m.LastAccessedAt), m.ExpiresAt,
		m.DeletedAt, m.DecayRate, m.DecayFunction, m.Version, m.PrevVersionID,
		m.Quarantined, m.QuarantineReason, m.ConsolidationState,
	)
	if err != nil {
		return mnemoerr.Storage("updating memory", err)
	}
	if tag.RowsAffected() == 0 {
		return mnemoerr.NotFound("memory %q", m.ID)
	}
	return nil
}

func nilIfZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (b *Backend) SoftDeleteMemory(ctx context.Context, id string, deletedAt time.Time) error {
	tag, err := b.pool.Exec(ctx, `UPDATE memories SET deleted_at=$2 WHERE id=$1`, id, deletedAt)
	if err != nil {
		return mnemoerr.Storage("soft-deleting memory", err)
	}
	if tag.RowsAffected() == 0 {
		return mnemoerr.NotFound("memory %q", id)
	}
	return nil
}

func (b *Backend) HardDeleteMemory(ctx context.Context, id string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM acls WHERE memory_id=$1`, id)
	if err != nil {
		return mnemoerr.Storage("cascading acl delete", err)
	}
	_, err = b.pool.Exec(ctx, `DELETE FROM memories WHERE id=$1`, id)
	if err != nil {
		return mnemoerr.Storage("hard-deleting memory", err)
	}
	return nil
}

func (b *Backend) ListMemories(ctx context.Context, filter storage.MemoryFilter) ([]*model.MemoryRecord, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if !filter.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	if filter.AgentID != "" {
		query += ` AND agent_id = ` + arg(filter.AgentID)
	}
	if filter.MemoryType != "" {
		query += ` AND memory_type = ` + arg(filter.MemoryType)
	}
	if filter.Scope != "" {
		query += ` AND scope = ` + arg(filter.Scope)
	}
	if filter.MinImportance > 0 {
		query += ` AND importance >= ` + arg(filter.MinImportance)
	}
	if filter.OrgID != "" {
		query += ` AND org_id = ` + arg(filter.OrgID)
	}
	if filter.ThreadID != "" {
		query += ` AND thread_id = ` + arg(filter.ThreadID)
	}
	if filter.AsOf != nil {
		query += ` AND updated_at <= ` + arg(*filter.AsOf)
	}
	if len(filter.Tags) > 0 {
		query += ` AND tags @> ` + arg(filter.Tags)
	}
	query += ` ORDER BY created_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mnemoerr.Storage("listing memories", err)
	}
	defer rows.Close()

	var out []*model.MemoryRecord
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, mnemoerr.Storage("scanning memory row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func placeholder(n int) string {
	return "$" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (b *Backend) ListMemoriesByAgentOrdered(ctx context.Context, agentID, threadID string, limit int) ([]*model.MemoryRecord, error) {
	return b.ListMemories(ctx, storage.MemoryFilter{
		AgentID: agentID, ThreadID: threadID, IncludeDeleted: true, Limit: limit,
	})
}

func (b *Backend) ListMemoriesSince(ctx context.Context, agentID string, since time.Time, limit int) ([]*model.MemoryRecord, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE agent_id=$1 AND updated_at > $2 ORDER BY updated_at ASC`
	args := []any{agentID, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mnemoerr.Storage("listing memories since watermark", err)
	}
	defer rows.Close()
	var out []*model.MemoryRecord
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, mnemoerr.Storage("scanning memory row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (b *Backend) ListAccessibleMemoryIDs(ctx context.Context, agentID string, limit int) ([]string, error) {
	query := `SELECT DISTINCT m.id FROM memories m
		LEFT JOIN acls a ON a.memory_id = m.id AND a.principal = $1
			AND (a.expires_at IS NULL OR a.expires_at > now())
		WHERE m.deleted_at IS NULL
			AND (m.agent_id = $2 OR m.scope IN ('public', 'global') OR a.id IS NOT NULL)`
	args := []any{"agent:" + agentID, agentID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mnemoerr.Storage("listing accessible memory ids", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mnemoerr.Storage("scanning memory id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (b *Backend) GetLatestMemoryHash(ctx context.Context, agentID, threadID string) ([32]byte, error) {
	var zero [32]byte
	var hash []byte
	err := b.pool.QueryRow(ctx, `SELECT content_hash FROM memories
		WHERE agent_id=$1 AND thread_id=$2 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, agentID, threadID).Scan(&hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return zero, mnemoerr.NotFound("no memory chain for agent %q thread %q", agentID, threadID)
		}
		return zero, mnemoerr.Storage("fetching latest memory hash", err)
	}
	return fromBytea(hash), nil
}

func (b *Backend) TouchMemory(ctx context.Context, id string, at time.Time) error {
	tag, err := b.pool.Exec(ctx, `UPDATE memories SET access_count = access_count + 1, last_accessed_at=$2 WHERE id=$1`, id, at)
	if err != nil {
		return mnemoerr.Storage("touching memory", err)
	}
	if tag.RowsAffected() == 0 {
		return mnemoerr.NotFound("memory %q", id)
	}
	return nil
}

func (b *Backend) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := b.pool.Exec(ctx, `UPDATE memories SET deleted_at=$1
		WHERE deleted_at IS NULL AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, mnemoerr.Storage("cleaning up expired memories", err)
	}
	return tag.RowsAffected(), nil
}

// --- Events ---

const eventColumns = `id, agent_id, thread_id, run_id, parent_event_id, event_type, payload,
	trace_id, span_id, model, tokens_input, tokens_output, latency_ms, cost_usd,
	timestamp, logical_clock, content_hash, prev_hash, has_prev_hash, embedding`

func scanEvent(row pgx.Row) (*model.AgentEvent, error) {
	var e model.AgentEvent
	var payloadRaw, prevHash, contentHash []byte
	err := row.Scan(
		&e.ID, &e.AgentID, &e.ThreadID, &e.RunID, &e.ParentEventID, &e.EventType, &payloadRaw,
		&e.TraceID, &e.SpanID, &e.Model, &e.TokensInput, &e.TokensOutput, &e.LatencyMs, &e.CostUSD,
		&e.Timestamp, &e.LogicalClock, &contentHash, &prevHash, &e.HasPrevHash, &e.Embedding,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = parseJSONB(payloadRaw)
	e.ContentHash = fromBytea(contentHash)
	if prevHash != nil {
		e.PrevHash = fromBytea(prevHash)
	}
	return &e, nil
}

func (b *Backend) InsertEvent(ctx context.Context, e *model.AgentEvent) error {
	payload, err := jsonbOf(e.Payload)
	if err != nil {
		return mnemoerr.Internal("marshaling event payload", err)
	}
	var prevHash any
	if e.HasPrevHash {
		prevHash = toBytea(e.PrevHash)
	}
	_, err = b.pool.Exec(ctx, `INSERT INTO agent_events (`+eventColumns+`) VALUES
		($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		e.ID, e.AgentID, e.ThreadID, e.RunID, e.ParentEventID, e.EventType, payload,
		e.TraceID, e.SpanID, e.Model, e.TokensInput, e.TokensOutput, e.LatencyMs, e.CostUSD,
		e.Timestamp, e.LogicalClock, toBytea(e.ContentHash), prevHash, e.HasPrevHash, e.Embedding,
	)
	if err != nil {
		return mnemoerr.Storage("inserting event", err)
	}
	return nil
}

func (b *Backend) listEvents(ctx context.Context, whereCol, id string, limit int) ([]*model.AgentEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM agent_events WHERE ` + whereCol + ` = $1 ORDER BY timestamp ASC`
	args := []any{id}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mnemoerr.Storage("listing events", err)
	}
	defer rows.Close()
	var out []*model.AgentEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mnemoerr.Storage("scanning event row", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *Backend) ListEventsByThread(ctx context.Context, threadID string, limit int) ([]*model.AgentEvent, error) {
	return b.listEvents(ctx, "thread_id", threadID, limit)
}

func (b *Backend) ListEventsByAgent(ctx context.Context, agentID string, limit int) ([]*model.AgentEvent, error) {
	return b.listEvents(ctx, "agent_id", agentID, limit)
}

func (b *Backend) GetLatestEventHash(ctx context.Context, agentID, threadID string) ([32]byte, error) {
	var zero [32]byte
	query := `SELECT content_hash FROM agent_events WHERE agent_id=$1`
	args := []any{agentID}
	if threadID != "" {
		query = `SELECT content_hash FROM agent_events WHERE thread_id=$1`
		args = []any{threadID}
	}
	query += ` ORDER BY timestamp DESC LIMIT 1`
	var hash []byte
	err := b.pool.QueryRow(ctx, query, args...).Scan(&hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return zero, mnemoerr.NotFound("no event chain for agent %q thread %q", agentID, threadID)
		}
		return zero, mnemoerr.Storage("fetching latest event hash", err)
	}
	return fromBytea(hash), nil
}

// --- Relations ---

func (b *Backend) InsertRelation(ctx context.Context, r *model.Relation) error {
	metadata, err := jsonbOf(r.Metadata)
	if err != nil {
		return mnemoerr.Internal("marshaling relation metadata", err)
	}
	_, err = b.pool.Exec(ctx, `INSERT INTO relations (id, from_id, to_id, type, weight, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.ID, r.FromID, r.ToID, r.Type, r.Weight, metadata, r.CreatedAt)
	if err != nil {
		return mnemoerr.Storage("inserting relation", err)
	}
	return nil
}

func (b *Backend) ListRelationsForMemory(ctx context.Context, memoryID string) ([]model.Relation, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, from_id, to_id, type, weight, metadata, created_at
		FROM relations WHERE from_id=$1 OR to_id=$1`, memoryID)
	if err != nil {
		return nil, mnemoerr.Storage("listing relations", err)
	}
	defer rows.Close()
	var out []model.Relation
	for rows.Next() {
		var r model.Relation
		var metadataRaw []byte
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.Weight, &metadataRaw, &r.CreatedAt); err != nil {
			return nil, mnemoerr.Storage("scanning relation row", err)
		}
		r.Metadata = parseJSONB(metadataRaw)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- ACLs ---

func scanACL(rows pgx.Rows) (model.Acl, error) {
	var a model.Acl
	var expiresAt *time.Time
	err := rows.Scan(&a.ID, &a.MemoryID, &a.Principal, &a.Permission, &a.GrantedBy, &a.CreatedAt, &expiresAt)
	if err == nil {
		a.ExpiresAt = expiresAt
	}
	return a, err
}

func (b *Backend) InsertACL(ctx context.Context, a *model.Acl) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO acls (id, memory_id, principal, permission, granted_by, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, a.ID, a.MemoryID, a.Principal, a.Permission, a.GrantedBy, a.CreatedAt, a.ExpiresAt)
	if err != nil {
		return mnemoerr.Storage("inserting acl", err)
	}
	return nil
}

func (b *Backend) ListACLsForMemory(ctx context.Context, memoryID string) ([]model.Acl, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, memory_id, principal, permission, granted_by, created_at, expires_at
		FROM acls WHERE memory_id=$1`, memoryID)
	if err != nil {
		return nil, mnemoerr.Storage("listing acls for memory", err)
	}
	defer rows.Close()
	var out []model.Acl
	for rows.Next() {
		a, err := scanACL(rows)
		if err != nil {
			return nil, mnemoerr.Storage("scanning acl row", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (b *Backend) ListACLsForPrincipal(ctx context.Context, principal string) ([]model.Acl, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, memory_id, principal, permission, granted_by, created_at, expires_at
		FROM acls WHERE principal=$1`, principal)
	if err != nil {
		return nil, mnemoerr.Storage("listing acls for principal", err)
	}
	defer rows.Close()
	var out []model.Acl
	for rows.Next() {
		a, err := scanACL(rows)
		if err != nil {
			return nil, mnemoerr.Storage("scanning acl row", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Delegations ---

func scanDelegation(rows pgx.Rows) (model.Delegation, error) {
	var d model.Delegation
	var scopeKind string
	var tags, memIDs []string
	err := rows.Scan(&d.ID, &d.DelegatorID, &d.DelegateID, &d.Permission, &scopeKind, &tags, &memIDs,
		&d.MaxDepth, &d.CurrentDepth, &d.CreatedAt, &d.ExpiresAt, &d.RevokedAt)
	d.Scope = model.DelegationScope{Kind: model.DelegationScopeKind(scopeKind), Tags: tags, MemoryIDs: memIDs}
	return d, err
}

func (b *Backend) InsertDelegation(ctx context.Context, d *model.Delegation) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO delegations
		(id, delegator_id, delegate_id, permission, scope_kind, scope_tags, scope_memory_ids,
		 max_depth, current_depth, created_at, expires_at, revoked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		d.ID, d.DelegatorID, d.DelegateID, d.Permission, string(d.Scope.Kind), d.Scope.Tags, d.Scope.MemoryIDs,
		d.MaxDepth, d.CurrentDepth, d.CreatedAt, d.ExpiresAt, d.RevokedAt)
	if err != nil {
		return mnemoerr.Storage("inserting delegation", err)
	}
	return nil
}

func (b *Backend) RevokeDelegation(ctx context.Context, id string, revokedAt time.Time) error {
	tag, err := b.pool.Exec(ctx, `UPDATE delegations SET revoked_at=$2 WHERE id=$1`, id, revokedAt)
	if err != nil {
		return mnemoerr.Storage("revoking delegation", err)
	}
	if tag.RowsAffected() == 0 {
		return mnemoerr.NotFound("delegation %q", id)
	}
	return nil
}

func (b *Backend) ListDelegationsForDelegate(ctx context.Context, delegateID string) ([]model.Delegation, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, delegator_id, delegate_id, permission, scope_kind, scope_tags,
		scope_memory_ids, max_depth, current_depth, created_at, expires_at, revoked_at
		FROM delegations WHERE delegate_id=$1`, delegateID)
	if err != nil {
		return nil, mnemoerr.Storage("listing delegations", err)
	}
	defer rows.Close()
	var out []model.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, mnemoerr.Storage("scanning delegation row", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Checkpoints ---

func scanCheckpoint(rows pgx.Rows) (*model.Checkpoint, error) {
	var c model.Checkpoint
	var snapshotRaw, diffRaw, metadataRaw []byte
	err := rows.Scan(&c.ID, &c.ThreadID, &c.AgentID, &c.ParentID, &c.BranchName, &snapshotRaw, &diffRaw,
		&c.MemoryRefs, &c.EventCursor, &c.Label, &c.CreatedAt, &metadataRaw)
	if err != nil {
		return nil, err
	}
	c.StateSnapshot = parseJSONB(snapshotRaw)
	c.StateDiff = parseJSONB(diffRaw)
	c.Metadata = parseJSONB(metadataRaw)
	return &c, nil
}

func (b *Backend) InsertCheckpoint(ctx context.Context, c *model.Checkpoint) error {
	snapshot, err := jsonbOf(c.StateSnapshot)
	if err != nil {
		return mnemoerr.Internal("marshaling checkpoint snapshot", err)
	}
	diff, err := jsonbOf(c.StateDiff)
	if err != nil {
		return mnemoerr.Internal("marshaling checkpoint diff", err)
	}
	metadata, err := jsonbOf(c.Metadata)
	if err != nil {
		return mnemoerr.Internal("marshaling checkpoint metadata", err)
	}
	_, err = b.pool.Exec(ctx, `INSERT INTO checkpoints
		(id, thread_id, agent_id, parent_id, branch_name, state_snapshot, state_diff,
		 memory_refs, event_cursor, label, created_at, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.ThreadID, c.AgentID, c.ParentID, c.BranchName, snapshot, diff,
		c.MemoryRefs, c.EventCursor, c.Label, c.CreatedAt, metadata)
	if err != nil {
		return mnemoerr.Storage("inserting checkpoint", err)
	}
	return nil
}

func (b *Backend) GetCheckpoint(ctx context.Context, id string) (*model.Checkpoint, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, thread_id, agent_id, parent_id, branch_name, state_snapshot,
		state_diff, memory_refs, event_cursor, label, created_at, metadata
		FROM checkpoints WHERE id=$1`, id)
	if err != nil {
		return nil, mnemoerr.Storage("fetching checkpoint", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, mnemoerr.NotFound("checkpoint %q", id)
	}
	return scanCheckpoint(rows)
}

func (b *Backend) ListCheckpointsByBranch(ctx context.Context, agentID, branchName string) ([]*model.Checkpoint, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, thread_id, agent_id, parent_id, branch_name, state_snapshot,
		state_diff, memory_refs, event_cursor, label, created_at, metadata
		FROM checkpoints WHERE agent_id=$1 AND branch_name=$2 ORDER BY created_at ASC`, agentID, branchName)
	if err != nil {
		return nil, mnemoerr.Storage("listing checkpoints", err)
	}
	defer rows.Close()
	var out []*model.Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, mnemoerr.Storage("scanning checkpoint row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *Backend) ListBranches(ctx context.Context, agentID string) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT DISTINCT branch_name FROM checkpoints WHERE agent_id=$1 ORDER BY branch_name`, agentID)
	if err != nil {
		return nil, mnemoerr.Storage("listing branches", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mnemoerr.Storage("scanning branch name", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// --- Agent profiles ---

func (b *Backend) GetAgentProfile(ctx context.Context, agentID string) (*model.AgentProfile, error) {
	var p model.AgentProfile
	err := b.pool.QueryRow(ctx, `SELECT agent_id, mean_importance, mean_content_length, memory_count, last_updated
		FROM agent_profiles WHERE agent_id=$1`, agentID).
		Scan(&p.AgentID, &p.MeanImportance, &p.MeanContentLength, &p.MemoryCount, &p.LastUpdated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, mnemoerr.NotFound("agent profile %q", agentID)
		}
		return nil, mnemoerr.Storage("fetching agent profile", err)
	}
	return &p, nil
}

func (b *Backend) UpsertAgentProfile(ctx context.Context, p *model.AgentProfile) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO agent_profiles (agent_id, mean_importance, mean_content_length, memory_count, last_updated)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (agent_id) DO UPDATE SET
			mean_importance=$2, mean_content_length=$3, memory_count=$4, last_updated=$5`,
		p.AgentID, p.MeanImportance, p.MeanContentLength, p.MemoryCount, p.LastUpdated)
	if err != nil {
		return mnemoerr.Storage("upserting agent profile", err)
	}
	return nil
}

// --- Watermarks ---

func (b *Backend) GetWatermark(ctx context.Context, name string) (*model.Watermark, error) {
	var w model.Watermark
	err := b.pool.QueryRow(ctx, `SELECT name, value FROM watermarks WHERE name=$1`, name).Scan(&w.Name, &w.Value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, mnemoerr.NotFound("watermark %q", name)
		}
		return nil, mnemoerr.Storage("fetching watermark", err)
	}
	return &w, nil
}

func (b *Backend) SetWatermark(ctx context.Context, w *model.Watermark) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO watermarks (name, value) VALUES ($1,$2)
		ON CONFLICT (name) DO UPDATE SET value=$2`, w.Name, w.Value)
	if err != nil {
		return mnemoerr.Storage("setting watermark", err)
	}
	return nil
}

var _ storage.Backend = (*Backend)(nil)
