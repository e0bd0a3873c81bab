package log

import (
	"go.uber.org/zap"
)

// Field is an alias for zap.Field.
type Field = zap.Field

// Field constructors, re-exported from zap so callers only import this
// package.
var (
	Int      = zap.Int
	String   = zap.String
	Stringer = zap.Stringer
	Duration = zap.Duration
	Any      = zap.Any
)

// Err stores err under the "error" key.
func Err(err error) Field {
	return zap.Error(err)
}
