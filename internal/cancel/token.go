package cancel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled is the default reason of a triggered token. Every reason
// reported by a token satisfies errors.Is(reason, ErrCancelled).
var ErrCancelled = errors.New("operation cancelled")

// Callback receives the reason a token was triggered.
type Callback func(reason error)

type registration struct {
	fn    Callback
	fired bool
}

// Token is a one-shot cancellation signal. The zero value is not usable; call
// New, FromContext or NewDependent.
type Token struct {
	mu        sync.Mutex
	triggered bool
	reason    error
	callbacks map[uint64]*registration
	order     []uint64
	nextID    uint64

	// detach removes this token's registration on its parent.
	detach func() bool

	ctx       context.Context
	ctxCancel context.CancelCauseFunc
}

// New returns a root token.
func New() *Token {
	ctx, ctxCancel := context.WithCancelCause(context.Background())
	return &Token{
		callbacks: make(map[uint64]*registration),
		ctx:       ctx,
		ctxCancel: ctxCancel,
	}
}

// FromContext returns a root token that is cancelled when ctx is done. This is
// how OS signal contexts enter the token tree.
func FromContext(ctx context.Context) *Token {
	t := New()
	stop := context.AfterFunc(ctx, func() {
		t.Cancel(context.Cause(ctx))
	})
	t.Register(func(error) { stop() })
	return t
}

// Cancel triggers the token. The first call records the reason and fires every
// registered callback on the calling goroutine before returning; later calls
// are no-ops. A nil reason means ErrCancelled.
func (t *Token) Cancel(reason error) {
	t.mu.Lock()
	if t.triggered {
		t.mu.Unlock()
		return
	}
	t.triggered = true
	t.reason = normalizeReason(reason)
	pending := make([]Callback, 0, len(t.order))
	for _, id := range t.order {
		reg, ok := t.callbacks[id]
		if !ok || reg.fired {
			continue
		}
		reg.fired = true
		pending = append(pending, reg.fn)
	}
	t.callbacks = nil
	t.order = nil
	detach := t.detach
	t.detach = nil
	reason = t.reason
	t.mu.Unlock()

	// Detaching from the parent keeps long-lived parents from holding
	// children that were cancelled on their own.
	if detach != nil {
		detach()
	}
	t.ctxCancel(reason)
	for _, fn := range pending {
		fn(reason)
	}
}

// Register arranges for fn to run once when the token triggers. If the token
// already triggered, fn runs immediately on the calling goroutine. The
// returned stop function detaches fn and reports whether it did so before fn
// fired.
func (t *Token) Register(fn Callback) (stop func() bool) {
	if fn == nil {
		return func() bool { return false }
	}

	t.mu.Lock()
	if t.triggered {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return func() bool { return false }
	}
	id := t.nextID
	t.nextID++
	t.callbacks[id] = &registration{fn: fn}
	t.order = append(t.order, id)
	t.mu.Unlock()

	return func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		reg, ok := t.callbacks[id]
		if !ok || reg.fired {
			return false
		}
		delete(t.callbacks, id)
		for i, v := range t.order {
			if v == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		return true
	}
}

// NewDependent returns a child token that triggers when t triggers. Cancelling
// the child does not affect t.
func (t *Token) NewDependent() *Token {
	child := New()
	stop := t.Register(child.Cancel)

	child.mu.Lock()
	if !child.triggered {
		child.detach = stop
	}
	child.mu.Unlock()
	return child
}

// Triggered reports whether the token has been cancelled.
func (t *Token) Triggered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.triggered
}

// Reason returns the cancellation reason, or nil while the token is live.
func (t *Token) Reason() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Err returns the reason if the token triggered, nil otherwise. It lets
// long-running loops poll between I/O steps.
func (t *Token) Err() error {
	return t.Reason()
}

// Done is closed when the token triggers.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Context returns a context cancelled with the token's reason as its cause.
func (t *Token) Context() context.Context {
	return t.ctx
}

// IsCancelled reports whether err stems from a triggered token, including
// context cancellation raised by I/O bound to Context().
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

type reasonError struct {
	cause error
}

func (e *reasonError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCancelled.Error(), e.cause)
}

func (e *reasonError) Unwrap() []error {
	return []error{ErrCancelled, e.cause}
}

func normalizeReason(reason error) error {
	switch {
	case reason == nil:
		return ErrCancelled
	case errors.Is(reason, ErrCancelled):
		return reason
	default:
		return &reasonError{cause: reason}
	}
}
