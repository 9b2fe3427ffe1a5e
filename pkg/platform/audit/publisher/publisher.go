// Package publisher emits audit events to a sink, synchronously by default or
// through a bounded async buffer that drains on Close.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "assetgate/pkg/platform/audit"
)

// ErrBufferFull is returned when the async buffer cannot accept more events.
// Audit loss is preferred over blocking the login path.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close. Late emitters (timer callbacks
// racing shutdown) get an error, never a panic.
var ErrClosed = errors.New("audit publisher closed")

// Publisher writes audit events to its store.
type Publisher struct {
	store audit.Store
	log   *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup

	// mu orders Emit against Close: Close marks closed under the write lock
	// before closing the buffer, so no Emit can send on a closed channel.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking through a buffer of the given size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithLogger attaches a logger for sink failures.
func WithLogger(log *slog.Logger) Option {
	return func(p *Publisher) { p.log = log }
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event. The timestamp and ID are filled in when absent. In
// async mode a full buffer drops the event rather than blocking the caller.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	default:
		p.log.Warn("audit event dropped", "action", event.Action)
		return ErrBufferFull
	}
}

// Close drains any buffered events and stops the worker.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.log.Warn("audit append failed", "action", event.Action, "error", err)
		}
	}
}
