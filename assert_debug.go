//go:build stmtkeydebug

package stmtkey

// assertionsEnabled turns on key state checks. Build with -tags stmtkeydebug.
const assertionsEnabled = true
