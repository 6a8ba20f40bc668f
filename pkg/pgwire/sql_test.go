package pgwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectExtractsAgentAndContentFilters(t *testing.T) {
	stmt, ok := parseSelect("SELECT * FROM memories WHERE agent_id = 'a' AND content LIKE '%dark mode%' LIMIT 10 OFFSET 5")
	require.True(t, ok)
	assert.Equal(t, "a", stmt.agentID)
	assert.Equal(t, "dark mode", stmt.content)
	assert.Equal(t, 10, stmt.limit)
	assert.Equal(t, 5, stmt.offset)
}

func TestParseSelectWithNoWhereClause(t *testing.T) {
	stmt, ok := parseSelect("SELECT * FROM memories")
	require.True(t, ok)
	assert.Empty(t, stmt.agentID)
	assert.Empty(t, stmt.content)
}

func TestParseSelectRejectsOtherTables(t *testing.T) {
	_, ok := parseSelect("SELECT * FROM events")
	assert.False(t, ok)
}

func TestParseInsertSplitsColumnsAndValues(t *testing.T) {
	stmt, ok := parseInsert(`INSERT INTO memories (content, agent_id, importance) VALUES ('hello, world', 'a', 0.5)`)
	require.True(t, ok)
	assert.Equal(t, []string{"content", "agent_id", "importance"}, stmt.columns)
	require.Len(t, stmt.values, 3)
	assert.Equal(t, "'hello, world'", stmt.values[0])

	content, agentID, memoryType, importance, err := buildInsertValues(stmt)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", content)
	assert.Equal(t, "a", agentID)
	assert.Empty(t, memoryType)
	assert.Equal(t, 0.5, importance)
}

func TestBuildInsertValuesRequiresContent(t *testing.T) {
	stmt, ok := parseInsert(`INSERT INTO memories (agent_id) VALUES ('a')`)
	require.True(t, ok)
	_, _, _, _, err := buildInsertValues(stmt)
	assert.Error(t, err)
}

func TestParseDeleteExtractsID(t *testing.T) {
	id, ok := parseDelete(`DELETE FROM memories WHERE id = 'mem-123'`)
	require.True(t, ok)
	assert.Equal(t, "mem-123", id)
}
