// Package bus is the in-process message bus that carries property writes from
// the MQTT layer onto the node's single loop goroutine.
package bus

import (
	"sync"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of levels. In subscriptions "+" matches exactly one
// level and a trailing "#" matches zero or more levels.
type Topic []string

const (
	wildOne  = "+"
	wildMany = "#"
)

// T builds a Topic from its levels.
func T(levels ...string) Topic { return Topic(levels) }

// Matches reports whether topic t matches the subscription filter f.
func (f Topic) Matches(t Topic) bool {
	for i, lv := range f {
		if lv == wildMany {
			return true
		}
		if i >= len(t) {
			return false
		}
		if lv != wildOne && lv != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// NewMessage builds a message; a retained message with nil payload clears
// the retained slot for its topic.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection

	// Set for queued subscriptions only.
	q *backlog
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver drops the oldest queued message when the queue is full. Queued
// subscriptions never drop; overflow waits in the backlog instead.
func (s *Subscription) deliver(m *Message) {
	if s.q != nil {
		s.q.push(s.ch, m)
		return
	}
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// close stops the backlog pump, if any, and closes the channel. The
// subscription must already be out of the trie.
func (s *Subscription) close() {
	if s.q != nil {
		s.q.stop()
	}
	close(s.ch)
}

// backlog is the unbounded FIFO behind a queued subscription. Messages go
// straight to the channel while nothing is pending; otherwise they are
// appended and a pump goroutine feeds them in order.
type backlog struct {
	mu      sync.Mutex
	pending []*Message
	wake    chan struct{}
	done    chan struct{}
	exited  chan struct{}
}

func newBacklog(ch chan *Message) *backlog {
	q := &backlog{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go q.pump(ch)
	return q
}

func (q *backlog) push(ch chan *Message, m *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		select {
		case ch <- m:
			return
		default:
		}
	}
	q.pending = append(q.pending, m)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// size reports how many messages wait behind a full channel.
func (q *backlog) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *backlog) pump(ch chan *Message) {
	defer close(q.exited)
	for {
		select {
		case <-q.wake:
		case <-q.done:
			return
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			m := q.pending[0]
			q.mu.Unlock()

			select {
			case ch <- m:
			case <-q.done:
				return
			}

			q.mu.Lock()
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()
		}
	}
}

func (q *backlog) stop() {
	close(q.done)
	<-q.exited
}

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(level string, create bool) *node {
	if c, ok := n.children[level]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := &node{}
	n.children[level] = c
	return c
}

// collectSubs appends subscriptions whose filters match t[i:].
func (n *node) collectSubs(t Topic, i int, out []*Subscription) []*Subscription {
	if c := n.children[wildMany]; c != nil {
		out = append(out, c.subs...)
	}
	if i == len(t) {
		return append(out, n.subs...)
	}
	if c := n.children[t[i]]; c != nil {
		out = c.collectSubs(t, i+1, out)
	}
	if c := n.children[wildOne]; c != nil {
		out = c.collectSubs(t, i+1, out)
	}
	return out
}

// collectRetained appends retained messages whose topics match filter f[i:].
func (n *node) collectRetained(f Topic, i int, out []*Message) []*Message {
	if i == len(f) {
		if n.retained != nil {
			out = append(out, n.retained)
		}
		return out
	}
	switch f[i] {
	case wildMany:
		return n.allRetained(out)
	case wildOne:
		for lv, c := range n.children {
			if lv == wildOne || lv == wildMany {
				continue
			}
			out = c.collectRetained(f, i+1, out)
		}
		return out
	}
	if c := n.children[f[i]]; c != nil {
		out = c.collectRetained(f, i+1, out)
	}
	return out
}

func (n *node) allRetained(out []*Message) []*Message {
	if n.retained != nil {
		out = append(out, n.retained)
	}
	for _, c := range n.children {
		out = c.allRetained(out)
	}
	return out
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.Mutex
	root *node
	qLen int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, lv := range sub.topic {
		n = n.child(lv, true)
	}
	n.subs = append(n.subs, sub)

	for _, m := range b.root.collectRetained(sub.topic, 0, nil) {
		sub.deliver(m)
	}
}

// Publish delivers a message to every matching subscriber and updates the
// retained slot when requested.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := b.root
		for _, lv := range msg.Topic {
			n = n.child(lv, true)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}

	for _, sub := range b.root.collectSubs(msg.Topic, 0, nil) {
		sub.deliver(msg)
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	stack := make([]*node, 0, len(sub.topic))
	for _, lv := range sub.topic {
		c := n.child(lv, false)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	// Prune empty nodes.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent, lv := stack[i], sub.topic[i]
		c := parent.children[lv]
		if len(c.subs) > 0 || len(c.children) > 0 || c.retained != nil {
			break
		}
		delete(parent.children, lv)
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection groups the subscriptions of one bus client so they can be torn
// down together.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(topic Topic) *Subscription {
	return c.subscribe(topic, false)
}

// SubscribeQueued is Subscribe for traffic that must not be lost: when the
// reader falls behind, messages wait in an unbounded FIFO behind the channel
// instead of displacing older ones.
func (c *Connection) SubscribeQueued(topic Topic) *Subscription {
	return c.subscribe(topic, true)
}

// Backlog reports how many messages of a queued subscription are waiting
// behind its full channel. It is always 0 for plain subscriptions.
func (s *Subscription) Backlog() int {
	if s.q == nil {
		return 0
	}
	return s.q.size()
}

func (c *Connection) subscribe(topic Topic, queued bool) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	if queued {
		sub.q = newBacklog(sub.ch)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	sub.close()
}

// Disconnect closes all subscriptions of the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		sub.close()
	}
}
