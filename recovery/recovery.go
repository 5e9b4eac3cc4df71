package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Do wraps f so that a panic is recovered and returned as an error. The stack
// trace is logged to the first logger, if any.
func Do(f func() error, logger ...log.Logger) func() error {
	return func() (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			switch e := r.(type) {
			case error:
				err = fmt.Errorf("panic: %w", e)
			default:
				err = fmt.Errorf("panic: %v", e)
			}
			if len(logger) > 0 {
				level.Error(logger[0]).Log("msg", "recovered from panic", "err", err, "stacktrace", string(debug.Stack()))
			}
		}()
		return f()
	}
}
