// Package eventqueue defines the transport-agnostic contract of spec.md
// §4.1: an append-only, strictly totally ordered log of matcher commands.
// eventqueue/local and eventqueue/remote are the two pluggable
// implementations spec.md §6 names.
package eventqueue

import (
	"context"
	"time"

	"github.com/nimbusdex/matcher/types"
)

// Handler processes one durably-appended event. StartConsume acknowledges
// implicitly on Handler returning nil; a non-nil error stops consumption
// without advancing past the failing offset, so the next StartConsume
// call resumes at the same record.
type Handler func(types.QueueEventWithMeta) error

// Queue is the EventQueue contract of spec.md §4.1.
type Queue interface {
	// Append durably appends event, returning the offset and server-side
	// timestamp assigned to it. requestID is the client-supplied
	// idempotency key: a retried Append with the same requestID after a
	// transport error must not duplicate the record.
	Append(ctx context.Context, event types.QueueEvent, requestID string) (offset uint64, ts uint64, err error)

	// LastEventOffset is the highest offset assigned to any event.
	LastEventOffset(ctx context.Context) (uint64, error)

	// LastProcessedOffset is the highest offset whose consumption this
	// queue has itself acknowledged (local transport only; remote
	// transports delegate offset tracking to the consumer group).
	LastProcessedOffset(ctx context.Context) (uint64, error)

	// StartConsume streams events in offset order starting at fromOffset,
	// blocking until ctx is cancelled or handler returns an error.
	StartConsume(ctx context.Context, fromOffset uint64, handler Handler) error

	// Close flushes and releases the transport's resources. A close that
	// cannot complete within timeout returns apperrors.Timeout.
	Close(timeout time.Duration) error
}
