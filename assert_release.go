//go:build !stmtkeydebug

package stmtkey

const assertionsEnabled = false
