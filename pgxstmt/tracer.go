package pgxstmt

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// PrepareTracer traces the server-side preparation of cached statements.
type PrepareTracer interface {
	// TracePrepareStart is called before a statement is prepared on the server. The returned context is passed to
	// TracePrepareEnd.
	TracePrepareStart(ctx context.Context, conn *pgconn.PgConn, data TracePrepareStartData) context.Context

	TracePrepareEnd(ctx context.Context, conn *pgconn.PgConn, data TracePrepareEndData)
}

type TracePrepareStartData struct {
	Name string
	SQL  string
}

type TracePrepareEndData struct {
	Err error
}
