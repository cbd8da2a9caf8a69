package scheduler

import "time"

// Deferrer schedules f to run once after d and returns a cancel handle.
// It exists so callers hold an explicit, cancellable handle to fire-and-forget
// cleanup work and so tests can substitute synchronous execution.
type Deferrer func(d time.Duration, f func()) (cancel func())

// After is the production Deferrer built on time.AfterFunc.
func After(d time.Duration, f func()) (cancel func()) {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// Immediate runs f synchronously and returns a no-op cancel. Test use only.
func Immediate(_ time.Duration, f func()) (cancel func()) {
	f()
	return func() {}
}
