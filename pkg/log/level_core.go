package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// coreWithLevel wraps a zapcore.Core and lets the logging level change at
// runtime.
//
// A zap core can only be restricted further, never relaxed, so the wrapped
// core must be built at DebugLevel and coreWithLevel applies the real level.
type coreWithLevel struct {
	zapcore.Core

	lvl *zap.AtomicLevel
}

func (c *coreWithLevel) Enabled(level zapcore.Level) bool {
	return c.lvl.Enabled(level) && c.Core.Enabled(level)
}

func (c *coreWithLevel) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.lvl.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With must wrap the child core again since zap returns its own private core.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		Core: c.Core.With(fields),
		lvl:  c.lvl,
	}
}

// wrapCoreWithLevel returns a zap.Option that wraps the logger core within a
// coreWithLevel at the given level. An existing coreWithLevel is unwrapped
// first so levels never stack.
func wrapCoreWithLevel(l *zap.AtomicLevel) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		if lvlCore, ok := core.(*coreWithLevel); ok {
			core = lvlCore.Core
		}
		return &coreWithLevel{Core: core, lvl: l}
	})
}
