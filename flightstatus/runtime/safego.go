package runtime

import (
	"context"
)

// SafeGo launches fn in a goroutine with panic recovery. A recovered panic is
// logged with its stack trace and then handled according to policy.
func SafeGo(logger Logger, name string, policy PanicPolicy, fn func()) {
	go func() {
		defer RecoverWithPolicy(logger, name, policy)

		fn()
	}()
}

// SafeGoWithContext launches fn in a goroutine with panic recovery and
// observability integration. The context is passed through to fn and used
// for metric and span recording when a panic occurs.
func SafeGoWithContext(
	ctx context.Context,
	logger Logger,
	name string,
	policy PanicPolicy,
	fn func(ctx context.Context),
) {
	SafeGoWithContextAndComponent(ctx, logger, "runtime", name, policy, fn)
}

// SafeGoWithContextAndComponent is like SafeGoWithContext but tags the
// recovered panic with a component label for metrics and span events.
func SafeGoWithContextAndComponent(
	ctx context.Context,
	logger Logger,
	component, name string,
	policy PanicPolicy,
	fn func(ctx context.Context),
) {
	go func() {
		defer RecoverWithPolicyAndContext(ctx, logger, component, name, policy)

		fn(ctx)
	}()
}
