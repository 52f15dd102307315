// Package cancel implements hierarchical, one-shot cancellation tokens.
//
// A Token is a node in a forest. Cancelling a token fires every callback
// registered on it exactly once and cascades to every dependent token derived
// from it. Cancelling a dependent token never reaches its parent or siblings.
//
// Network code binds to a token through Context(), so stdlib I/O such as
// http.NewRequestWithContext aborts as soon as the token triggers and the
// error chain carries ErrCancelled for callers to branch on.
package cancel
