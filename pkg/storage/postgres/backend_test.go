//go:build integration

package postgres

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mnemo-db/mnemo/pkg/model"
)

// newTestBackend spins up a disposable Postgres container and returns
// a Backend with migrations applied, mirroring the teacher's
// test/database.NewTestClient pattern (spec backend is pgx-native
// rather than ent-driven; see DESIGN.md).
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mnemo_test"),
		tcpostgres.WithUsername("mnemo_test"),
		tcpostgres.WithPassword("mnemo_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	u, err := url.Parse(connStr)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	password, _ := u.User.Password()

	cfg := Config{
		Host: u.Hostname(), Port: port, User: u.User.Username(), Password: password,
		Database: "mnemo_test", SSLMode: "disable", MaxConns: 5, MinConns: 1,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	}

	backend, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestPostgresMemoryRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	m := &model.MemoryRecord{
		ID: "m1", AgentID: "a1", Content: "hello", MemoryType: model.MemoryTypeEpisodic,
		Scope: model.ScopePrivate, ThreadID: "t1", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, b.InsertMemory(ctx, m))

	got, err := b.GetMemory(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Content)

	got.Content = "updated"
	got.UpdatedAt = time.Now()
	require.NoError(t, b.UpdateMemory(ctx, got))

	got2, err := b.GetMemory(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, "updated", got2.Content)
}

func TestPostgresEventsAreAppendOnly(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	e := &model.AgentEvent{ID: "e1", AgentID: "a1", ThreadID: "t1", EventType: model.EventUserMessage, Timestamp: time.Now()}
	require.NoError(t, b.InsertEvent(ctx, e))

	_, err := b.pool.Exec(ctx, `UPDATE agent_events SET agent_id='other' WHERE id='e1'`)
	require.Error(t, err)
}

func TestPostgresAccessibleMemoryIDsUnion(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "own", AgentID: "a1", Scope: model.ScopePrivate, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "pub", AgentID: "a2", Scope: model.ScopePublic, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "other", AgentID: "a2", Scope: model.ScopePrivate, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, b.InsertACL(ctx, &model.Acl{ID: "acl1", MemoryID: "other", Principal: "agent:a1", Permission: model.PermissionRead, CreatedAt: now}))

	ids, err := b.ListAccessibleMemoryIDs(ctx, "a1", 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"own", "pub", "other"}, ids)
}
