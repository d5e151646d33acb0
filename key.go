package stmtkey

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Result set types, concurrency modes, holdability and generated key constants as used by JDBC style statement
// producers. None of the optional constants are zero.
const (
	TypeForwardOnly       = 1003
	TypeScrollInsensitive = 1004
	TypeScrollSensitive   = 1005

	ConcurReadOnly  = 1007
	ConcurUpdatable = 1008

	HoldCursorsOverCommit = 1
	CloseCursorsAtCommit  = 2

	ReturnGeneratedKeys = 1
	NoGeneratedKeys     = 2
)

// Conn is the physical connection that owns a cached statement. It is borrowed, never closed or mutated. Keys compare
// connections with ==, so implementations must be comparable and are normally pointers such as *pgconn.PgConn.
type Conn interface {
	PID() uint32
}

// Descriptor describes the shape of a requested statement.
type Descriptor struct {
	SQL                  string
	Callable             bool
	ResultSetType        int32
	ResultSetConcurrency int32

	// ColumnIndexes and ColumnNames select generated key columns. nil means the driver default. A non-nil empty slice
	// is distinct from nil.
	ColumnIndexes []int
	ColumnNames   []string

	AutoGeneratedKeys    OptionalInt
	ResultSetHoldability OptionalInt
}

type keyState int8

const (
	keyNascent keyState = iota
	keyCandidate
	keyFrozen
)

func (s keyState) String() string {
	switch s {
	case keyNascent:
		return "nascent"
	case keyCandidate:
		return "candidate"
	case keyFrozen:
		return "frozen"
	default:
		return "invalid key state " + strconv.Itoa(int(s))
	}
}

// Key identifies a cached statement: the statement shape plus the connection it was prepared on.
//
// A Key returned by a Dispatcher or NewKey is frozen and never changes afterwards. Keys are compared with Equal, never
// with ==.
type Key struct {
	conn                 Conn
	sql                  string
	callable             bool
	resultSetType        int32
	resultSetConcurrency int32
	columnIndexes        []int
	columnNames          []string
	autoGeneratedKeys    OptionalInt
	resultSetHoldability OptionalInt

	hash  uint64
	state keyState
}

// NewKey returns a frozen key for conn and desc. The column slices of desc are copied. conn must not be nil and
// desc.SQL should not be empty; neither is checked.
func NewKey(conn Conn, desc *Descriptor) *Key {
	k := &Key{}
	k.init(conn, desc)
	k.freeze()
	return k
}

// init sets every field of k from conn and desc. The column slices are borrowed until freeze.
func (k *Key) init(conn Conn, desc *Descriptor) {
	if assertionsEnabled && k.state == keyFrozen {
		panic("stmtkey: reinitializing frozen key " + k.String())
	}

	k.conn = conn
	k.sql = desc.SQL
	k.callable = desc.Callable
	k.resultSetType = desc.ResultSetType
	k.resultSetConcurrency = desc.ResultSetConcurrency
	k.columnIndexes = desc.ColumnIndexes
	k.columnNames = desc.ColumnNames
	k.autoGeneratedKeys = desc.AutoGeneratedKeys
	k.resultSetHoldability = desc.ResultSetHoldability
	k.hash = k.computeHash()
	k.state = keyCandidate
}

// freeze makes k permanently immutable. Borrowed slices are replaced by private copies.
func (k *Key) freeze() {
	if assertionsEnabled && k.state != keyCandidate {
		panic("stmtkey: freezing key in state " + k.state.String())
	}

	k.columnIndexes = slices.Clone(k.columnIndexes)
	k.columnNames = slices.Clone(k.columnNames)
	k.state = keyFrozen
}

// reset drops every reference held by k so a pooled candidate does not pin connections or caller slices.
func (k *Key) reset() {
	if assertionsEnabled && k.state == keyFrozen {
		panic("stmtkey: recycling frozen key " + k.String())
	}

	*k = Key{}
}

// Conn returns the connection that owns the statement.
func (k *Key) Conn() Conn { return k.conn }

// SQL returns the statement text.
func (k *Key) SQL() string { return k.sql }

func (k *Key) Callable() bool              { return k.callable }
func (k *Key) ResultSetType() int32        { return k.resultSetType }
func (k *Key) ResultSetConcurrency() int32 { return k.resultSetConcurrency }

// ColumnIndexes returns the generated key column indexes. The returned slice must not be modified.
func (k *Key) ColumnIndexes() []int { return k.columnIndexes }

// ColumnNames returns the generated key column names. The returned slice must not be modified.
func (k *Key) ColumnNames() []string { return k.columnNames }

func (k *Key) AutoGeneratedKeys() OptionalInt    { return k.autoGeneratedKeys }
func (k *Key) ResultSetHoldability() OptionalInt { return k.resultSetHoldability }

// Frozen reports whether k has been published and can no longer change.
func (k *Key) Frozen() bool { return k.state == keyFrozen }

// Descriptor returns the statement shape of k. The returned slices are shared with k and must not be modified.
func (k *Key) Descriptor() Descriptor {
	return Descriptor{
		SQL:                  k.sql,
		Callable:             k.callable,
		ResultSetType:        k.resultSetType,
		ResultSetConcurrency: k.resultSetConcurrency,
		ColumnIndexes:        k.columnIndexes,
		ColumnNames:          k.columnNames,
		AutoGeneratedKeys:    k.autoGeneratedKeys,
		ResultSetHoldability: k.resultSetHoldability,
	}
}

// Equal reports whether k and other describe the same statement on the same connection.
func (k *Key) Equal(other *Key) bool {
	if k == other {
		return true
	}
	if other == nil || k.hash != other.hash {
		return false
	}

	return k.conn == other.conn &&
		k.sql == other.sql &&
		k.callable == other.callable &&
		k.resultSetType == other.resultSetType &&
		k.resultSetConcurrency == other.resultSetConcurrency &&
		optionalSliceEqual(k.columnIndexes, other.columnIndexes) &&
		optionalSliceEqual(k.columnNames, other.columnNames) &&
		k.autoGeneratedKeys.Equal(other.autoGeneratedKeys) &&
		k.resultSetHoldability.Equal(other.resultSetHoldability)
}

// Hash returns the hash of k. Equal keys have equal hashes.
func (k *Key) Hash() uint64 {
	return k.hash
}

// computeHash combines the field hashes with xor. Each field is rotated by its own amount so that swapping two int
// fields changes the hash. Unset fields contribute 0.
func (k *Key) computeHash() uint64 {
	var callable uint64
	if k.callable {
		callable = 1
	}

	return uint64(k.conn.PID()) ^
		xxhash.Sum64String(k.sql) ^
		bits.RotateLeft64(callable, 61) ^
		bits.RotateLeft64(uint64(uint32(k.resultSetType)), 16) ^
		bits.RotateLeft64(uint64(uint32(k.resultSetConcurrency)), 32) ^
		hashInts(k.columnIndexes) ^
		bits.RotateLeft64(hashStrings(k.columnNames), 7) ^
		bits.RotateLeft64(k.autoGeneratedKeys.hash(), 48) ^
		bits.RotateLeft64(k.resultSetHoldability.hash(), 56)
}

// String renders every field of k for diagnostics.
func (k *Key) String() string {
	var sb strings.Builder
	sb.Grow(128)
	sb.WriteString("[stmtkey.Key: ")
	fmt.Fprintf(&sb, "conn->%v", k.conn)
	sb.WriteString(", sql->")
	sb.WriteString(k.sql)
	sb.WriteString(", callable->")
	sb.WriteString(strconv.FormatBool(k.callable))
	sb.WriteString(", resultSetType->")
	sb.WriteString(strconv.FormatInt(int64(k.resultSetType), 10))
	sb.WriteString(", resultSetConcurrency->")
	sb.WriteString(strconv.FormatInt(int64(k.resultSetConcurrency), 10))
	sb.WriteString(", columnIndexes->")
	writeOptionalSlice(&sb, k.columnIndexes)
	sb.WriteString(", columnNames->")
	writeOptionalSlice(&sb, k.columnNames)
	sb.WriteString(", autoGeneratedKeys->")
	sb.WriteString(k.autoGeneratedKeys.String())
	sb.WriteString(", resultSetHoldability->")
	sb.WriteString(k.resultSetHoldability.String())
	sb.WriteByte(']')
	return sb.String()
}

// optionalSliceEqual compares element-wise. A nil slice only equals another nil slice.
func optionalSliceEqual[S ~[]E, E comparable](a, b S) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.Equal(a, b)
}

func writeOptionalSlice[E any](sb *strings.Builder, s []E) {
	if s == nil {
		sb.WriteString("null")
		return
	}
	fmt.Fprintf(sb, "%v", s)
}

// hashInts returns 0 for nil. Any non-nil slice, including an empty one, hashes to the xxhash of its encoding which is
// non-zero for the empty input.
func hashInts(s []int) uint64 {
	if s == nil {
		return 0
	}

	var d xxhash.Digest
	d.Reset()
	var buf [8]byte
	for _, n := range s {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		d.Write(buf[:])
	}
	return d.Sum64()
}

func hashStrings(s []string) uint64 {
	if s == nil {
		return 0
	}

	var d xxhash.Digest
	d.Reset()
	var buf [4]byte
	for _, str := range s {
		binary.LittleEndian.PutUint32(buf[:], uint32(len(str)))
		d.Write(buf[:])
		d.WriteString(str)
	}
	return d.Sum64()
}
