package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/atomic"
)

// channel is a bounded multi-producer, single-consumer queue of results. The
// queue ends once every sender has been closed, and senders are told when the
// receiver went away so that they can stop producing.
type channel struct {
	items   chan Result
	done    chan struct{}
	once    sync.Once
	senders *atomic.Int64
}

type sender struct {
	ch     *channel
	closed *atomic.Bool
}

type receiver struct {
	ch *channel
}

// newChannel returns the two ends of a queue that buffers at most capacity
// results.
func newChannel(capacity int) (*sender, *receiver) {
	ch := &channel{
		items:   make(chan Result, capacity),
		done:    make(chan struct{}),
		senders: atomic.NewInt64(1),
	}
	return &sender{ch: ch, closed: atomic.NewBool(false)}, &receiver{ch: ch}
}

// Clone registers an additional producer. The clone must be closed on its
// own.
func (s *sender) Clone() *sender {
	s.ch.senders.Inc()
	return &sender{ch: s.ch, closed: atomic.NewBool(false)}
}

// Send blocks until there is room for r, the receiver is closed or ctx is
// done.
func (s *sender) Send(ctx context.Context, r Result) error {
	select {
	case <-s.ch.done:
		return ErrReceiverClosed
	default:
	}

	select {
	case s.ch.items <- r:
		return nil
	case <-s.ch.done:
		return ErrReceiverClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unregisters the producer. Calling it more than once is a no-op.
func (s *sender) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.ch.senders.Dec() != 0 {
		return
	}
	close(s.ch.items)

	// A send racing with the receiver's Close may have landed after its
	// drain.
	select {
	case <-s.ch.done:
		s.ch.drain()
	default:
	}
}

func (r *receiver) Next(ctx context.Context) (arrow.Record, error) {
	select {
	case item, ok := <-r.ch.items:
		if !ok {
			return nil, io.EOF
		}
		return item.Record, item.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close signals the senders and releases whatever is still buffered.
func (r *receiver) Close() error {
	r.ch.once.Do(func() {
		close(r.ch.done)
	})
	r.ch.drain()
	return nil
}

func (ch *channel) drain() {
	for {
		select {
		case item, ok := <-ch.items:
			if !ok {
				return
			}
			releaseResult(item)
		default:
			return
		}
	}
}
