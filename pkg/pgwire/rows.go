package pgwire

import (
	"strconv"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/mnemo-db/mnemo/pkg/model"
)

// memoryColumns is the fixed projection SELECT * returns: a useful
// subset of model.MemoryRecord rather than every stored field, since
// the dialect's clients are simple SQL tools, not full pg_catalog
// consumers.
var memoryColumns = []string{"id", "agent_id", "content", "memory_type", "scope", "importance", "created_at"}

// writeMemoryRows sends a RowDescription followed by one DataRow per
// record and a CommandComplete tagged with the row count, the shape a
// real `SELECT` response takes in the simple query protocol.
func writeMemoryRows(backend *pgproto3.Backend, records []*model.MemoryRecord) {
	backend.Send(rowDescription())
	for _, r := range records {
		backend.Send(dataRow(r))
	}
	backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("SELECT " + strconv.Itoa(len(records)))})
}

func rowDescription() *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(memoryColumns))
	for i, name := range memoryColumns {
		fields[i] = pgproto3.FieldDescription{
			Name:         []byte(name),
			DataTypeOID:  25, // text
			DataTypeSize: -1,
			TypeModifier: -1,
			Format:       0, // text format
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

func dataRow(r *model.MemoryRecord) *pgproto3.DataRow {
	values := [][]byte{
		[]byte(r.ID),
		[]byte(r.AgentID),
		[]byte(r.Content),
		[]byte(string(r.MemoryType)),
		[]byte(string(r.Scope)),
		[]byte(strconv.FormatFloat(r.Importance, 'f', -1, 64)),
		[]byte(r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")),
	}
	return &pgproto3.DataRow{Values: values}
}
