package broadcast

import (
	"errors"
	"sync"
)

// ErrSubscriberGone is returned by QueueSubscriber.Send when the
// subscriber has been closed or its backlog is full. The channel
// owner treats it as a delivery failure and drops the subscriber.
var ErrSubscriberGone = errors.New("subscriber gone")

// QueueSubscriber adapts a buffered message queue to the Subscriber
// interface. The serving goroutine (an SSE handler, typically) reads
// from Messages; the channel owner pushes into it without blocking.
// A slow consumer whose queue fills up counts as failed delivery and
// is dropped, preserving the no-slow-subscriber-stalls-broadcast
// property.
type QueueSubscriber struct {
	messages chan []byte

	mu     sync.Mutex
	closed bool
}

// NewQueueSubscriber creates a subscriber with the given backlog
// capacity.
func NewQueueSubscriber(buffer int) *QueueSubscriber {
	return &QueueSubscriber{
		messages: make(chan []byte, buffer),
	}
}

// Messages is the consumer side of the queue. It is closed by Close.
func (q *QueueSubscriber) Messages() <-chan []byte {
	return q.messages
}

// Send enqueues a message without blocking.
func (q *QueueSubscriber) Send(msg []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrSubscriberGone
	}
	select {
	case q.messages <- msg:
		return nil
	default:
		return ErrSubscriberGone
	}
}

// Close marks the subscriber dead and closes the consumer channel.
// Safe to call more than once.
func (q *QueueSubscriber) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.messages)
}
