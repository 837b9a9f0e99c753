package runtime

// PanicPolicy determines how a recovered panic is handled after logging.
type PanicPolicy int

const (
	// KeepRunning logs the panic and continues execution. Use for workers
	// and handlers where one failure should not take down the process.
	KeepRunning PanicPolicy = iota

	// CrashProcess logs the panic and re-panics. Use for critical sections
	// where continuing in an unknown state would be dangerous.
	CrashProcess
)

// String returns a human-readable name for the policy.
func (p PanicPolicy) String() string {
	switch p {
	case KeepRunning:
		return "KeepRunning"
	case CrashProcess:
		return "CrashProcess"
	default:
		return "Unknown"
	}
}
