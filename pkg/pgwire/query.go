package pgwire

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/query"
)

// handleQuery dispatches one simple-query message to the matching
// query-engine operation and writes its result (or an error) back to
// the client, always finishing with ReadyForQuery so the client may
// send its next statement.
func (s *Server) handleQuery(ctx context.Context, backend *pgproto3.Backend, sql string) {
	var err error
	switch {
	case selectRe.MatchString(sql):
		err = s.handleSelect(ctx, backend, sql)
	case insertRe.MatchString(sql):
		err = s.handleInsert(ctx, backend, sql)
	case deleteRe.MatchString(sql):
		err = s.handleDelete(ctx, backend, sql)
	default:
		s.sendError(backend, "unsupported statement; mnemo's pgwire dialect only supports SELECT/INSERT/DELETE on memories")
		backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		_ = backend.Flush()
		return
	}
	if err != nil {
		s.sendError(backend, err.Error())
	}
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	_ = backend.Flush()
}

func (s *Server) agentOrDefault(agentID string) string {
	if agentID != "" {
		return agentID
	}
	return s.AgentID
}

// handleSelect maps to Recall with strategy=exact (spec §6).
func (s *Server) handleSelect(ctx context.Context, backend *pgproto3.Backend, sql string) error {
	stmt, _ := parseSelect(sql)
	result, err := s.Engine.Recall(ctx, query.RecallRequest{
		AgentID:  s.agentOrDefault(stmt.agentID),
		Query:    stmt.content,
		Strategy: query.StrategyExact,
		Limit:    stmt.limit,
	})
	if err != nil {
		return err
	}
	records := make([]*model.MemoryRecord, 0, len(result.Memories))
	for i, sm := range result.Memories {
		if stmt.offset > 0 && i < stmt.offset {
			continue
		}
		records = append(records, sm.Record)
	}
	writeMemoryRows(backend, records)
	return nil
}

// handleInsert maps to Remember (spec §6).
func (s *Server) handleInsert(ctx context.Context, backend *pgproto3.Backend, sql string) error {
	stmt, _ := parseInsert(sql)
	content, agentID, memoryType, importance, err := buildInsertValues(stmt)
	if err != nil {
		return err
	}
	_, err = s.Engine.Remember(ctx, query.RememberRequest{
		AgentID:    s.agentOrDefault(agentID),
		Content:    content,
		MemoryType: model.MemoryType(memoryType),
		Importance: importance,
	})
	if err != nil {
		return err
	}
	backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("INSERT 0 1")})
	return nil
}

// handleDelete maps to Forget(soft_delete) (spec §6).
func (s *Server) handleDelete(ctx context.Context, backend *pgproto3.Backend, sql string) error {
	id, _ := parseDelete(sql)
	result, err := s.Engine.Forget(ctx, query.ForgetRequest{
		AgentID:   s.AgentID,
		MemoryIDs: []string{id},
		Strategy:  query.ForgetSoftDelete,
	})
	if err != nil {
		return err
	}
	backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("DELETE " + strconv.Itoa(len(result.Forgotten)))})
	return nil
}
