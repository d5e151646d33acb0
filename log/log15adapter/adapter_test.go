package log15adapter_test

import (
	"context"
	"testing"

	"github.com/jackc/stmtkey/log/log15adapter"
	"github.com/jackc/stmtkey/tracelog"
	"github.com/stretchr/testify/require"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	var records []*log15.Record
	l := log15.New()
	l.SetHandler(log15.FuncHandler(func(r *log15.Record) error {
		records = append(records, r)
		return nil
	}))

	logger := log15adapter.NewLogger(l)
	logger.Log(context.Background(), tracelog.LogLevelDebug, "Lookup", map[string]any{"hit": true})

	require.Len(t, records, 1)
	require.Equal(t, log15.LvlDebug, records[0].Lvl)
	require.Equal(t, "Lookup", records[0].Msg)
	require.Equal(t, []any{"hit", true}, records[0].Ctx)
}
