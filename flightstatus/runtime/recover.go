package runtime

import (
	"context"
	"runtime/debug"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
)

// Logger is the minimal logging interface required by runtime. It is
// satisfied by github.com/LerianStudio/lib-flightstatus/flightstatus/log.Logger.
type Logger interface {
	Log(ctx context.Context, level log.Level, msg string, fields ...log.Field)
}

// RecoverAndLog recovers from a panic, logs it with the stack trace, and
// continues execution. Use this in defer statements for handlers and workers
// where you want to prevent crashes.
//
// Note: this function does not record metrics or span events because it lacks
// context. For observability integration, use RecoverAndLogWithContext instead.
func RecoverAndLog(logger Logger, name string) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
	}
}

// RecoverAndLogWithContext is like RecoverAndLog but also records a metric
// and a span event on any active span in ctx.
//
// Example:
//
//	func worker(ctx context.Context) {
//	    defer runtime.RecoverAndLogWithContext(ctx, logger, "failover", "refresh_worker")
//	    // ...
//	}
func RecoverAndLogWithContext(ctx context.Context, logger Logger, component, name string) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		logPanicWithStack(logger, name, r, stack)
		recordPanicObservability(ctx, r, stack, component, name)
	}
}

// RecoverAndCrash recovers from a panic, logs it with the stack trace, and
// re-panics to crash the process. Use this in defer statements for critical
// operations where continuing after a panic would be dangerous.
func RecoverAndCrash(logger Logger, name string) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
		panic(r)
	}
}

// RecoverAndCrashWithContext is like RecoverAndCrash but records metrics and
// span events before re-panicking.
func RecoverAndCrashWithContext(ctx context.Context, logger Logger, component, name string) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		logPanicWithStack(logger, name, r, stack)
		recordPanicObservability(ctx, r, stack, component, name)
		panic(r)
	}
}

// RecoverWithPolicy recovers from a panic and handles it according to the
// given policy. Use this when the recovery behavior is determined at runtime.
func RecoverWithPolicy(logger Logger, name string, policy PanicPolicy) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)

		if policy == CrashProcess {
			panic(r)
		}
	}
}

// RecoverWithPolicyAndContext is like RecoverWithPolicy but also records a
// metric and a span event on any active span in ctx.
func RecoverWithPolicyAndContext(
	ctx context.Context,
	logger Logger,
	component, name string,
	policy PanicPolicy,
) {
	if recovered := recover(); recovered != nil {
		stack := debug.Stack()
		logPanicWithStack(logger, name, recovered, stack)
		recordPanicObservability(ctx, recovered, stack, component, name)

		if policy == CrashProcess {
			panic(recovered)
		}
	}
}

// HandlePanicValue processes a panic value that was already recovered by an
// external mechanism (e.g. Fiber's recover middleware). It logs and records
// observability data without calling recover() itself.
func HandlePanicValue(ctx context.Context, logger Logger, panicValue any, component, name string) {
	if panicValue == nil {
		return
	}

	stack := debug.Stack()
	logPanicWithStack(logger, name, panicValue, stack)
	recordPanicObservability(ctx, panicValue, stack, component, name)
}

func logPanic(logger Logger, name string, panicValue any) {
	stack := debug.Stack()
	logPanicWithStack(logger, name, panicValue, stack)
}

func logPanicWithStack(logger Logger, name string, panicValue any, stack []byte) {
	if logger == nil {
		return
	}

	logger.Log(context.Background(), log.LevelError, "panic recovered",
		log.String("source", name),
		log.Any("panic_value", panicValue),
		log.String("stack", string(stack)),
	)
}

// recordPanicObservability records panic information to all configured
// observability systems: the panic counter and a span event on the active span.
func recordPanicObservability(
	ctx context.Context,
	panicValue any,
	stack []byte,
	component, name string,
) {
	recordPanicMetric(ctx, component, name)
	RecordPanicToSpanWithComponent(ctx, panicValue, stack, component, name)
}
