// Package backend is the narrow read/subscribe contract against the hosted
// storage service. The engine only ever reads rows and listens for inserts;
// writes belong to the identity provider itself.
package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agentidp/agentwatch/internal/model"
)

// ErrAggregateUnsupported reports that the backend does not compute the
// requested aggregate server-side. The engine then derives it client-side
// from the raw event lists.
var ErrAggregateUnsupported = errors.New("backend: aggregate not supported server-side")

// Client is the read/subscribe surface the engine consumes.
type Client interface {
	// Bulk reads. Event lists arrive newest-first, agents name-ascending.
	ListTokenRows(ctx context.Context, limit int) ([]model.RawTokenRow, error)
	ListAuditRows(ctx context.Context, limit int) ([]model.RawAuditRow, error)
	ListAgentRows(ctx context.Context) ([]model.RawAgentRow, error)

	// Server-side aggregates. Either may return ErrAggregateUnsupported.
	AggregateUsage(ctx context.Context, sampleLimit int) ([]model.RawUsageRow, error)
	AggregateTraffic(ctx context.Context, span time.Duration) ([]model.RawTrafficRow, error)

	// Realtime insert feeds. Each is an independent channel; closing one
	// does not affect the other.
	SubscribeTokenInserts(ctx context.Context, buffer int) (*TokenFeed, error)
	SubscribeAuditInserts(ctx context.Context, buffer int) (*AuditFeed, error)
}

// TokenFeed is one realtime stream of token-issuance inserts.
type TokenFeed struct {
	rows    chan model.RawTokenRow
	done    chan struct{}
	once    sync.Once
	onClose func()
}

// NewTokenFeed creates a feed with the given channel buffer. onClose runs
// exactly once when the feed is closed; transports use it to tear down the
// underlying connection.
func NewTokenFeed(buffer int, onClose func()) *TokenFeed {
	if buffer <= 0 {
		buffer = 1
	}
	return &TokenFeed{
		rows:    make(chan model.RawTokenRow, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Rows is the insert stream, one raw record per message.
func (f *TokenFeed) Rows() <-chan model.RawTokenRow { return f.rows }

// Done is closed when the feed is closed.
func (f *TokenFeed) Done() <-chan struct{} { return f.done }

// Emit delivers one row to the consumer, blocking until there is room.
// Returns false once the feed is closed; nothing is delivered after that.
func (f *TokenFeed) Emit(row model.RawTokenRow) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case <-f.done:
		return false
	case f.rows <- row:
		return true
	}
}

// Close tears the feed down. Idempotent.
func (f *TokenFeed) Close() {
	f.once.Do(func() {
		close(f.done)
		if f.onClose != nil {
			f.onClose()
		}
	})
}

// AuditFeed is one realtime stream of access-attempt inserts.
type AuditFeed struct {
	rows    chan model.RawAuditRow
	done    chan struct{}
	once    sync.Once
	onClose func()
}

// NewAuditFeed mirrors NewTokenFeed for the audit stream.
func NewAuditFeed(buffer int, onClose func()) *AuditFeed {
	if buffer <= 0 {
		buffer = 1
	}
	return &AuditFeed{
		rows:    make(chan model.RawAuditRow, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Rows is the insert stream.
func (f *AuditFeed) Rows() <-chan model.RawAuditRow { return f.rows }

// Done is closed when the feed is closed.
func (f *AuditFeed) Done() <-chan struct{} { return f.done }

// Emit delivers one row, blocking until there is room. False after close.
func (f *AuditFeed) Emit(row model.RawAuditRow) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case <-f.done:
		return false
	case f.rows <- row:
		return true
	}
}

// Close tears the feed down. Idempotent.
func (f *AuditFeed) Close() {
	f.once.Do(func() {
		close(f.done)
		if f.onClose != nil {
			f.onClose()
		}
	})
}
