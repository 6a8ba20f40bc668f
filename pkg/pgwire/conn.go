package pgwire

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgproto3"
)

// handleConn runs the startup handshake and simple-query loop for one
// client connection (spec §6): SSL requests are refused with a
// literal 'N' byte, authentication is trust (no password exchange),
// and every query message is handled independently — there is no
// transaction or extended-query (Parse/Bind/Execute) support, since
// the spec's dialect is "one statement per query".
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	backend := pgproto3.NewBackend(conn, conn)

	if err := s.handshake(backend, conn); err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger().Warn("pgwire handshake failed", "error", err)
		}
		return
	}

	for {
		msg, err := backend.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger().Warn("pgwire receive failed", "error", err)
			}
			return
		}

		switch m := msg.(type) {
		case *pgproto3.Query:
			s.handleQuery(ctx, backend, m.String)
		case *pgproto3.Terminate:
			return
		default:
			s.sendError(backend, "only the simple query protocol is supported")
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
			if err := backend.Flush(); err != nil {
				return
			}
		}
	}
}

// handshake refuses SSL, accepts the startup message, and completes
// trust authentication.
func (s *Server) handshake(backend *pgproto3.Backend, conn net.Conn) error {
	startup, err := backend.ReceiveStartupMessage()
	if err != nil {
		return err
	}

	if _, ok := startup.(*pgproto3.SSLRequest); ok {
		if _, err := conn.Write([]byte{'N'}); err != nil {
			return err
		}
		startup, err = backend.ReceiveStartupMessage()
		if err != nil {
			return err
		}
	}

	if _, ok := startup.(*pgproto3.StartupMessage); !ok {
		return errors.New("pgwire: expected startup message")
	}

	backend.Send(&pgproto3.AuthenticationOk{})
	backend.Send(&pgproto3.ParameterStatus{Name: "server_version", Value: "mnemo-pgwire"})
	backend.Send(&pgproto3.BackendKeyData{ProcessID: 0, SecretKey: 0})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	return backend.Flush()
}

func (s *Server) sendError(backend *pgproto3.Backend, message string) {
	backend.Send(&pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     "58000",
		Message:  message,
	})
}
