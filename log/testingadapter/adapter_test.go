package testingadapter_test

import (
	"context"
	"testing"

	"github.com/jackc/stmtkey/log/testingadapter"
	"github.com/jackc/stmtkey/tracelog"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	args [][]any
}

func (r *recorder) Log(args ...any) {
	r.args = append(r.args, args)
}

func TestLogger(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	logger := testingadapter.NewLogger(r)
	logger.Log(context.Background(), tracelog.LogLevelInfo, "Lookup", map[string]any{"sql": "select 1", "hit": false})

	require.Equal(t, [][]any{{tracelog.LogLevelInfo, "Lookup", "hit=false", "sql=select 1"}}, r.args)
}
