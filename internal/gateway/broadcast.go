// Package gateway holds the in-memory connection registry and the per-connection stream sessions. Everything here is
// volatile: durable state lives in PostgreSQL, and the registry only ever carries notifications about rows that have
// already been committed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/parley-chat/parley-server/internal/wire"
)

// channelCapacity is the bounded ring size of every room broadcast channel and every direct channel. A subscriber
// that falls more than this many frames behind starts losing the oldest ones.
const channelCapacity = 100

// ErrSubscriptionClosed is returned by Recv after the underlying channel is dropped, which happens when a room loses
// its last member or a direct endpoint is unregistered.
var ErrSubscriptionClosed = errors.New("subscription closed")

// ErrUserOffline is returned by SendDirect when the target user holds no live connection.
var ErrUserOffline = errors.New("user has no live connection")

// LaggedError is returned by Recv exactly once after a subscriber has lost frames to overflow. The subscriber is
// expected to log it and keep receiving; the lost frames are already durable in storage.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscription lagged, %d frames dropped", e.Missed)
}

// broadcastChannel is the fan-out core shared by all subscribers of one room or one direct endpoint. Publishing never
// blocks: a full subscriber ring drops its oldest frame to make space and the loss is reported through LaggedError on
// the subscriber's next Recv.
type broadcastChannel struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newBroadcastChannel() *broadcastChannel {
	return &broadcastChannel{subs: make(map[*Subscription]struct{})}
}

// subscribe returns a fresh Subscription that observes every frame published after this call.
func (c *broadcastChannel) subscribe() *Subscription {
	s := &Subscription{
		ch:     make(chan wire.Frame, channelCapacity),
		done:   make(chan struct{}),
		parent: c,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(s.done)
		return s
	}
	c.subs[s] = struct{}{}
	return s
}

// publish delivers the frame to every subscriber, dropping each subscriber's oldest buffered frame on overflow.
func (c *broadcastChannel) publish(frame wire.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for s := range c.subs {
		select {
		case s.ch <- frame:
			continue
		default:
		}

		// Ring is full: evict the oldest frame, then retry once. The eviction can race the subscriber draining the
		// channel, so the retry may still fail; either way exactly one frame is recorded as missed.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- frame:
			s.missed.Add(1)
		default:
			s.missed.Add(1)
		}
	}
}

// closeAll signals every subscriber that the channel is gone. Buffered frames remain receivable.
func (c *broadcastChannel) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for s := range c.subs {
		s.closeOnce.Do(func() { close(s.done) })
		delete(c.subs, s)
	}
}

// drop removes a single subscription, used when its holder closes it.
func (c *broadcastChannel) drop(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, s)
}

// Subscription is one subscriber's handle onto a broadcast channel. It remains valid until Close is called or the
// channel itself is dropped, independent of any registry bookkeeping done after it was issued.
type Subscription struct {
	ch        chan wire.Frame
	done      chan struct{}
	missed    atomic.Uint64
	closeOnce sync.Once
	parent    *broadcastChannel
}

// Recv blocks until a frame is available, the subscription is closed, or the context is done. After frames have been
// lost to overflow it returns a *LaggedError once, then resumes from the next available frame.
func (s *Subscription) Recv(ctx context.Context) (wire.Frame, error) {
	if n := s.missed.Swap(0); n > 0 {
		return wire.Frame{}, &LaggedError{Missed: n}
	}

	// Prefer buffered frames over the closed signal so a dropped channel still drains.
	select {
	case frame := <-s.ch:
		return frame, nil
	default:
	}

	select {
	case frame := <-s.ch:
		return frame, nil
	case <-s.done:
		return wire.Frame{}, ErrSubscriptionClosed
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	}
}

// Close detaches the subscription from its channel. Safe to call multiple times.
func (s *Subscription) Close() {
	s.parent.drop(s)
	s.closeOnce.Do(func() { close(s.done) })
}
