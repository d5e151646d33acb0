package kitlogadapter_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-kit/log"
	"github.com/jackc/stmtkey/log/kitlogadapter"
	"github.com/jackc/stmtkey/tracelog"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := kitlogadapter.NewLogger(log.NewLogfmtLogger(&buf))

	logger.Log(context.Background(), tracelog.LogLevelInfo, "hello", map[string]any{"one": "two"})
	require.Equal(t, "level=info one=two msg=hello\n", buf.String())
}
