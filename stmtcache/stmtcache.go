// Package stmtcache is a cache for prepared statements keyed by *stmtkey.Key.
package stmtcache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/stmtkey"
)

// StatementName returns a server-side statement name for k. The name depends only on the statement shape, not on the
// connection, so it is stable for one shape across the connections of a pool and across program executions.
func StatementName(k *stmtkey.Key) string {
	d := k.Descriptor()

	h := xxhash.New()
	h.WriteString(strconv.Quote(d.SQL))
	h.WriteString("|")
	h.WriteString(strconv.FormatBool(d.Callable))
	h.WriteString("|")
	h.WriteString(strconv.FormatInt(int64(d.ResultSetType), 10))
	h.WriteString("|")
	h.WriteString(strconv.FormatInt(int64(d.ResultSetConcurrency), 10))
	if d.ColumnIndexes != nil {
		h.WriteString("|indexes")
		for _, n := range d.ColumnIndexes {
			h.WriteString(",")
			h.WriteString(strconv.Itoa(n))
		}
	}
	if d.ColumnNames != nil {
		h.WriteString("|names")
		for _, s := range d.ColumnNames {
			h.WriteString(",")
			h.WriteString(strconv.Quote(s))
		}
	}
	h.WriteString("|")
	h.WriteString(d.AutoGeneratedKeys.String())
	h.WriteString("|")
	h.WriteString(d.ResultSetHoldability.String())

	return "stmtcache_" + strconv.FormatUint(h.Sum64(), 16)
}
