// Package pgwire implements the minimal PostgreSQL wire-protocol text
// dialect spec §6 names: one statement per simple-query message,
// mapped onto the query engine's Recall/Remember/Forget operations.
// Framing is handled by jackc/pgx/v5's pgproto3 subpackage — the same
// module the storage layer already depends on for its own Postgres
// client — rather than a hand-rolled byte-level parser.
package pgwire

import (
	"context"
	"log/slog"
	"net"

	"github.com/mnemo-db/mnemo/pkg/query"
)

// Server accepts PostgreSQL wire-protocol connections and serves them
// against a single query engine and default agent.
type Server struct {
	Engine  *query.Engine
	AgentID string
	Logger  *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ListenAndServe binds addr and serves connections until ctx is
// canceled, closing the listener to unblock Accept.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger().Error("pgwire accept failed", "error", err)
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}
