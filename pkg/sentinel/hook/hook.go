// Package hook holds the process-wide handler chain for uncaught panics.
//
// Go has no global "uncaught exception" callback, so a panic is only seen by
// code that defers Recover (directly, or through Go). Recover hands the panic
// to every installed Handler, newest first, and then re-panics so the process
// behaves exactly as it would without any handler installed.
//
// Several owners may install handlers at once. Each Install returns a Token;
// restoring a Token removes only that installation, leaving the rest of the
// chain (including handlers installed before or after it) untouched.
package hook

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives an uncaught panic. Handlers must not block for long: the
// panicking goroutine is unwinding while they run.
type Handler func(u Uncaught)

// Uncaught describes a panic that reached a Recover guard.
type Uncaught struct {
	// Value is the raw value passed to panic.
	Value any

	// Err is Value when it is an error, otherwise a *PanicError wrapping it.
	Err error

	// Stack is the stack of the panicking goroutine, captured at the catch site.
	Stack []Frame

	// Time is when the panic was caught.
	Time time.Time
}

// PanicError wraps a non-error panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if e.Value == nil {
		return "<nil>"
	}
	return fmt.Sprint(e.Value)
}

// AsError converts a recovered panic value into an error.
func AsError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return &PanicError{Value: v}
}

// Token identifies one installation in the chain.
type Token struct {
	id uint64
}

type entry struct {
	id uint64
	h  Handler
}

var (
	mu     sync.Mutex
	chain  []entry
	nextID uint64
)

// Install adds h to the head of the chain. The handler that was at the head
// before keeps running after h for every dispatched panic.
func Install(h Handler) *Token {
	mu.Lock()
	defer mu.Unlock()

	nextID++
	chain = append(chain, entry{id: nextID, h: h})
	return &Token{id: nextID}
}

// Restore removes the installation identified by t. It reports whether
// anything was removed; restoring the same token twice is a no-op.
func (t *Token) Restore() bool {
	if t == nil {
		return false
	}

	mu.Lock()
	defer mu.Unlock()

	for i, e := range chain {
		if e.id == t.id {
			chain = append(chain[:i:i], chain[i+1:]...)
			return true
		}
	}
	return false
}

// Installed returns the number of active installations.
func Installed() int {
	mu.Lock()
	defer mu.Unlock()
	return len(chain)
}

// Dispatch runs the chain for u, newest handler first. A handler that panics
// is logged and skipped over; the remaining handlers still run.
func Dispatch(u Uncaught) {
	mu.Lock()
	snapshot := make([]entry, len(chain))
	copy(snapshot, chain)
	mu.Unlock()

	for i := len(snapshot) - 1; i >= 0; i-- {
		invoke(snapshot[i].h, u)
	}
}

var logger atomic.Pointer[slog.Logger]

// SetLogger sets where handler faults are logged. nil restores slog.Default().
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func logf() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func invoke(h Handler, u Uncaught) {
	defer func() {
		if r := recover(); r != nil {
			logf().Error("sentinel: panic handler panicked",
				"panic", fmt.Sprint(r),
				"dispatched", u.Err)
		}
	}()
	h(u)
}

// Recover dispatches an in-flight panic to the chain and then re-panics with
// the original value. It must be deferred directly:
//
//	defer hook.Recover()
func Recover() {
	r := recover()
	if r == nil {
		return
	}

	Dispatch(Uncaught{
		Value: r,
		Err:   AsError(r),
		Stack: Callers(1),
		Time:  time.Now().UTC(),
	})

	panic(r)
}

// RecoverAndContinue is like Recover but swallows the panic after the chain
// has run. It must be deferred directly.
func RecoverAndContinue() {
	r := recover()
	if r == nil {
		return
	}

	Dispatch(Uncaught{
		Value: r,
		Err:   AsError(r),
		Stack: Callers(1),
		Time:  time.Now().UTC(),
	})
}

// Go runs fn in a new goroutine guarded by Recover.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}
