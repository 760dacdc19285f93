package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// WithRecoveryNamed runs fn and converts a panic into a logged error.
// It reports whether fn panicked.
func WithRecoveryNamed(logger *slog.Logger, name string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("named_panic_recovered",
				slog.String("worker_name", name),
				slog.String("error", fmt.Sprintf("%v", r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
	return false
}
