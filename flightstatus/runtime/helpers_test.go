package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
)

// testLogger captures log calls. It is shared across the runtime test files.
type testLogger struct {
	mu          sync.Mutex
	messages    []string
	panicLogged atomic.Bool
	logged      chan struct{}
}

func newTestLogger() *testLogger {
	return &testLogger{
		logged: make(chan struct{}, 1),
	}
}

func (logger *testLogger) Log(_ context.Context, _ log.Level, msg string, _ ...log.Field) {
	logger.mu.Lock()
	defer logger.mu.Unlock()

	logger.messages = append(logger.messages, msg)
	logger.panicLogged.Store(true)

	select {
	case logger.logged <- struct{}{}:
	default:
	}
}

func (logger *testLogger) wasPanicLogged() bool {
	return logger.panicLogged.Load()
}

func (logger *testLogger) waitForPanicLog(timeout time.Duration) bool {
	select {
	case <-logger.logged:
		return true
	case <-time.After(timeout):
		return false
	}
}
