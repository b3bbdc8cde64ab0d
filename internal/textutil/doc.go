// Package textutil provides small text helpers for filename and token
// sanitization used when deriving staging directories and library paths
// from user-entered target names.
package textutil
