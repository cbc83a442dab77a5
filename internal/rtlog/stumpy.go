package rtlog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// NewStumpy returns a Logger backed by github.com/joeycumines/stumpy, the
// teacher pack's "model" logiface backend: JSON-encoded, one line per
// entry, written to w (os.Stderr if w is nil).
func NewStumpy(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	base := stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithWriter(w),
	)
	return &stumpyLogger{base: base}
}

type stumpyLogger struct {
	base *logiface.Logger[*stumpy.Event]
}

func (l *stumpyLogger) Log(level Level, msg string, fields ...Field) {
	var b *logiface.Builder[*stumpy.Event]
	switch level {
	case LevelDebug:
		b = l.base.Debug()
	case LevelWarn:
		b = l.base.Warning()
	case LevelError:
		b = l.base.Err()
	default:
		b = l.base.Info()
	}
	if b == nil {
		// level disabled on this logger instance
		return
	}
	for _, f := range fields {
		if f.Key == "err" {
			if err, ok := f.Val.(error); ok {
				b = b.Err(err)
				continue
			}
		}
		if s, ok := f.Val.(string); ok {
			b = b.Str(f.Key, s)
			continue
		}
		b = b.Any(f.Key, f.Val)
	}
	b.Log(msg)
}
