// Package broadcast is the single named cross-replica channel of spec
// §5: update messages carrying {projectId, originReplicaId, update},
// delivered to every subscriber except (by convention) the one that
// published them. Kept on stdlib chan + a mutex-guarded map rather than an
// external pub/sub library: spec §1 explicitly places "pub/sub channel
// plumbing" out of scope as a UI-facing concern, and the in-process
// fan-out this package does is a single broadcast primitive with no
// persistence, delivery-guarantee, or cross-process requirement — the
// properties a message broker library would add are exactly the ones
// spec §5 says not to rely on ("messages are not acknowledged...
// lost or reordered messages are harmless").
package broadcast

import "sync"

// Message is one repo-update notification (spec §5).
type Message struct {
	ProjectId       string
	OriginReplicaId string
	Update          any
}

// Channel is one named broadcast channel shared by every replica in a
// process (or, if wired externally, a stand-in for a real transport).
type Channel struct {
	mu   sync.Mutex
	subs map[int]chan Message
	next int
}

// New returns an empty Channel.
func New() *Channel {
	return &Channel{subs: make(map[int]chan Message)}
}

// Subscribe registers a new subscriber and returns a receive channel
// plus an unsubscribe function. The receive channel is buffered so a
// slow subscriber cannot block Publish.
func (c *Channel) Subscribe() (<-chan Message, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.next
	c.next++
	ch := make(chan Message, 32)
	c.subs[id] = ch

	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ch, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish delivers msg to every current subscriber. A subscriber whose
// buffer is full is dropped silently for this message: spec §5 treats
// lost messages as harmless since replicas reconcile by pulling.
func (c *Channel) Publish(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Close closes every subscriber channel.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
