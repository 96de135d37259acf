// Package alloclog provides the allocator's structured logging and fatal
// assertion path. It is initialized to discard everything so embedding
// this module never forces output on a host application; callers opt in
// with SetLogger.
package alloclog

import (
	"fmt"
	"io"
	"log/slog"
)

// L is the package-wide logger. It starts out discarding all records.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetLogger replaces the package logger. Passing nil restores the
// discarding default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	L = l
}

// Debug logs a diagnostic event at debug level; PageCache uses it to
// report a failed OS mapping. Cost is a level check when disabled;
// callers should not build args eagerly for hot paths guarded by this.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Fatal logs an invariant violation and panics. The spec classifies a
// missing reverse-index entry or an out-of-range block address as caller
// misuse or memory corruption that "cannot be recovered locally" — panic
// is this module's fatal-assertion boundary, matching the teacher
// package's own panic-on-corruption style (mempool.free's unaligned
// pointer check).
func Fatal(msg string, args ...any) {
	L.Error(msg, args...)
	panic(fmt.Sprintf("gophercache: %s", msg))
}
