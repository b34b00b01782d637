// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected worker launches
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// workerCounter tracks workers launched via SafeGo for diagnostics
var workerCounter int64

// GetWorkerCount returns the number of workers launched via SafeGo
func GetWorkerCount() int64 {
	return atomic.LoadInt64(&workerCounter)
}

// SafeGo runs fn in a goroutine with panic recovery.
// Learning, answering and stats workers are fire-and-forget: a panic is logged
// and written to a crash file, the process keeps serving.
//
// Example:
//
//	common.SafeGo(logger, "learnDocument", func() {
//	    status := engine.LearnDocument(ctx, path)
//	    events.Publish(ctx, learnedEvent(status))
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&workerCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				stackTrace := string(buf[:n])

				if logger != nil {
					logger.Error().
						Str("worker", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in worker")
				} else {
					fmt.Fprintf(os.Stderr, "PANIC in worker %s: %v\n%s\n", name, r, stackTrace)
				}

				WriteCrashFile(name, r, stackTrace)
			}
		}()

		fn()
	}()
}
