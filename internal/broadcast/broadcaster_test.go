package broadcast

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// recv waits for one message from the subscriber or fails the test.
func recv(t *testing.T, sub *QueueSubscriber) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

// expectNone asserts no message arrives within a short grace window.
func expectNone(t *testing.T, sub *QueueSubscriber) {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		if ok {
			t.Fatalf("unexpected message: %s", msg)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastDelivers(t *testing.T) {
	b := New(testLogger())
	sub := NewQueueSubscriber(8)

	b.Subscribe("s1", sub)
	b.Broadcast("s1", []byte("one"))
	b.Broadcast("s1", []byte("two"))

	if got := string(recv(t, sub)); got != "one" {
		t.Errorf("first message = %q, want %q", got, "one")
	}
	if got := string(recv(t, sub)); got != "two" {
		t.Errorf("second message = %q, want %q", got, "two")
	}
}

func TestBroadcastZeroSubscribersIsNoop(t *testing.T) {
	b := New(testLogger())

	// Must not block or panic; the message is simply dropped.
	b.Broadcast("nobody-listening", []byte("hello"))

	// A later subscriber sees only messages sent after it attached.
	sub := NewQueueSubscriber(8)
	b.Subscribe("nobody-listening", sub)
	b.Broadcast("nobody-listening", []byte("after"))

	if got := string(recv(t, sub)); got != "after" {
		t.Errorf("message = %q, want %q", got, "after")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	b := New(testLogger())
	sub1 := NewQueueSubscriber(8)
	sub2 := NewQueueSubscriber(8)

	b.Subscribe("s1", sub1)
	b.Subscribe("s2", sub2)
	b.Broadcast("s1", []byte("for-s1"))

	if got := string(recv(t, sub1)); got != "for-s1" {
		t.Errorf("s1 message = %q, want %q", got, "for-s1")
	}
	expectNone(t, sub2)
}

type failingSubscriber struct{}

func (failingSubscriber) Send([]byte) error { return errors.New("gone") }

func TestFailedSubscriberDropped(t *testing.T) {
	b := New(testLogger())
	good := NewQueueSubscriber(8)

	b.Subscribe("s1", failingSubscriber{})
	b.Subscribe("s1", good)

	// The failing subscriber is dropped; delivery to the healthy one
	// continues.
	b.Broadcast("s1", []byte("one"))
	b.Broadcast("s1", []byte("two"))

	if got := string(recv(t, good)); got != "one" {
		t.Errorf("first message = %q, want %q", got, "one")
	}
	if got := string(recv(t, good)); got != "two" {
		t.Errorf("second message = %q, want %q", got, "two")
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	b := New(testLogger())
	slow := NewQueueSubscriber(1)
	fast := NewQueueSubscriber(8)

	b.Subscribe("s1", slow)
	b.Subscribe("s1", fast)

	// Fill the slow subscriber's backlog, then overflow it. The fast
	// subscriber keeps receiving.
	b.Broadcast("s1", []byte("one"))
	b.Broadcast("s1", []byte("two"))
	b.Broadcast("s1", []byte("three"))

	for _, want := range []string{"one", "two", "three"} {
		if got := string(recv(t, fast)); got != want {
			t.Errorf("fast message = %q, want %q", got, want)
		}
	}
	// The slow queue got the first message before it filled up.
	if got := string(recv(t, slow)); got != "one" {
		t.Errorf("slow message = %q, want %q", got, "one")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New(testLogger())
	sub := NewQueueSubscriber(8)

	b.Subscribe("s1", sub)
	b.Broadcast("s1", []byte("before"))
	b.Unsubscribe("s1", sub)
	b.Broadcast("s1", []byte("after"))

	if got := string(recv(t, sub)); got != "before" {
		t.Errorf("message = %q, want %q", got, "before")
	}
	expectNone(t, sub)
}

func TestShutdownStopsDelivery(t *testing.T) {
	b := New(testLogger())
	sub := NewQueueSubscriber(8)

	b.Subscribe("s1", sub)
	b.Broadcast("s1", []byte("last"))
	b.Shutdown("s1")

	if got := string(recv(t, sub)); got != "last" {
		t.Errorf("message = %q, want %q", got, "last")
	}

	// Broadcasting after shutdown is a no-op; the old subscriber
	// hears nothing.
	b.Broadcast("s1", []byte("ignored"))
	expectNone(t, sub)

	// Shutting down twice is safe.
	b.Shutdown("s1")
}

func TestLateBroadcastLeavesNoChannel(t *testing.T) {
	b := New(testLogger())
	sub := NewQueueSubscriber(8)

	b.Subscribe("s1", sub)
	b.Shutdown("s1")

	for i := 0; i < 10; i++ {
		b.Broadcast("s1", []byte("late"))
	}
	b.Broadcast("never-subscribed", []byte("late"))

	b.mu.Lock()
	n := len(b.channels)
	b.mu.Unlock()
	if n != 0 {
		t.Fatalf("late broadcasts registered %d channels, want 0", n)
	}
}

func TestConcurrentBroadcasters(t *testing.T) {
	b := New(testLogger())
	sub := NewQueueSubscriber(64)
	b.Subscribe("s1", sub)

	const n = 20
	for i := 0; i < n; i++ {
		go b.Broadcast("s1", fmt.Appendf(nil, "msg-%d", i))
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		seen[string(recv(t, sub))] = true
	}
	if len(seen) != n {
		t.Errorf("received %d distinct messages, want %d", len(seen), n)
	}
}

func TestQueueSubscriberClose(t *testing.T) {
	sub := NewQueueSubscriber(1)

	if err := sub.Send([]byte("one")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := sub.Send([]byte("overflow")); !errors.Is(err, ErrSubscriberGone) {
		t.Errorf("overflow send error = %v, want ErrSubscriberGone", err)
	}

	sub.Close()
	sub.Close() // idempotent

	if err := sub.Send([]byte("closed")); !errors.Is(err, ErrSubscriberGone) {
		t.Errorf("send after close error = %v, want ErrSubscriberGone", err)
	}
}
