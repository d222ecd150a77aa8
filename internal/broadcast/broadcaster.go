// Package broadcast fans live session updates out to subscribed
// observers. Each session id owns one mailbox goroutine that applies
// subscribe, unsubscribe, and broadcast commands sequentially, so
// subscriber-set mutation and message delivery for a session never
// interleave. Channels for different sessions run fully in parallel
// and share no lock beyond the registry map.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Subscriber is one attached observer. Send must not block; a Send
// error means the observer is gone and removes it from the channel.
type Subscriber interface {
	Send(msg []byte) error
}

type commandKind int

const (
	cmdSubscribe commandKind = iota
	cmdUnsubscribe
	cmdBroadcast
	cmdShutdown
)

type command struct {
	kind commandKind
	sub  Subscriber
	msg  []byte
}

// mailboxSize bounds each session channel's command queue. Delivery
// is best-effort: commands beyond the backlog are dropped rather than
// blocking the ingestion path.
const mailboxSize = 256

type sessionChannel struct {
	sessionID string
	commands  chan command
	closed    atomic.Bool
	logger    *slog.Logger
}

// enqueue posts a command to the channel's mailbox without blocking.
// Returns false when the channel has shut down or its backlog is full.
func (ch *sessionChannel) enqueue(cmd command) bool {
	if ch.closed.Load() {
		return false
	}
	select {
	case ch.commands <- cmd:
		return true
	default:
		return false
	}
}

// run is the channel's owner goroutine. It exits on cmdShutdown after
// draining whatever is left in the mailbox.
func (ch *sessionChannel) run() {
	var subscribers []Subscriber

	for cmd := range ch.commands {
		switch cmd.kind {
		case cmdSubscribe:
			subscribers = append(subscribers, cmd.sub)

		case cmdUnsubscribe:
			subscribers = removeSubscriber(subscribers, cmd.sub)

		case cmdBroadcast:
			// Deliver to every subscriber; a failed delivery drops
			// that subscriber without aborting delivery to the rest.
			kept := subscribers[:0]
			for _, sub := range subscribers {
				if err := sub.Send(cmd.msg); err != nil {
					ch.logger.Debug("subscriber dropped",
						"session_id", ch.sessionID,
						"error", err,
					)
					continue
				}
				kept = append(kept, sub)
			}
			for i := len(kept); i < len(subscribers); i++ {
				subscribers[i] = nil
			}
			subscribers = kept

		case cmdShutdown:
			ch.closed.Store(true)
			// Drain anything that raced in behind the shutdown.
			for {
				select {
				case <-ch.commands:
				default:
					return
				}
			}
		}
	}
}

func removeSubscriber(subscribers []Subscriber, sub Subscriber) []Subscriber {
	for i, existing := range subscribers {
		if existing == sub {
			subscribers[i] = subscribers[len(subscribers)-1]
			subscribers[len(subscribers)-1] = nil
			return subscribers[:len(subscribers)-1]
		}
	}
	return subscribers
}

// Broadcaster is the registry of per-session channels. Channels are
// created lazily on first subscribe; subscribing to a nonexistent or
// completed session is legal and simply receives nothing further.
// Broadcasting to a session nobody watches touches no state, so late
// broadcasts after shutdown never respawn a channel goroutine.
type Broadcaster struct {
	mu       sync.Mutex
	channels map[string]*sessionChannel
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		channels: make(map[string]*sessionChannel),
		logger:   logger,
	}
}

func (b *Broadcaster) channel(sessionID string) *sessionChannel {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.channels[sessionID]
	if !ok {
		ch = &sessionChannel{
			sessionID: sessionID,
			commands:  make(chan command, mailboxSize),
			logger:    b.logger,
		}
		b.channels[sessionID] = ch
		go ch.run()
	}
	return ch
}

// Subscribe attaches an observer to the session's channel.
func (b *Broadcaster) Subscribe(sessionID string, sub Subscriber) {
	b.channel(sessionID).enqueue(command{kind: cmdSubscribe, sub: sub})
}

// Unsubscribe detaches an observer. No-op when the channel is gone.
func (b *Broadcaster) Unsubscribe(sessionID string, sub Subscriber) {
	b.mu.Lock()
	ch, ok := b.channels[sessionID]
	b.mu.Unlock()
	if ok {
		ch.enqueue(command{kind: cmdUnsubscribe, sub: sub})
	}
}

// Broadcast delivers msg to every subscriber currently attached to
// the session's channel. Broadcasting with zero subscribers, or to a
// session with no channel at all, is a no-op. Delivery is
// best-effort; failures are local to the failing subscriber.
func (b *Broadcaster) Broadcast(sessionID string, msg []byte) {
	b.mu.Lock()
	ch, ok := b.channels[sessionID]
	b.mu.Unlock()
	if ok {
		ch.enqueue(command{kind: cmdBroadcast, msg: msg})
	}
}

// Shutdown tears down the channel for a completed session. Messages
// broadcast before the shutdown command are still delivered in order.
func (b *Broadcaster) Shutdown(sessionID string) {
	b.mu.Lock()
	ch, ok := b.channels[sessionID]
	if ok {
		delete(b.channels, sessionID)
	}
	b.mu.Unlock()
	if ok {
		// Bypass the mailbox-full drop for shutdown so the owner
		// goroutine always terminates.
		if !ch.enqueue(command{kind: cmdShutdown}) {
			go func() { ch.commands <- command{kind: cmdShutdown} }()
		}
	}
}
