package registry

import "sync"

// Mailbox is a peer's outbound queue. Sends never block the caller —
// spec.md §4.2 requires send_to and broadcast to be non-suspending, and
// §5 restricts suspension points to connection I/O and channel
// dequeuing, never registry operations. A buffered Go channel has a
// fixed capacity and would make Send block (or require a silent drop)
// once full; Mailbox instead grows an internal slice under a mutex and
// signals a waiting reader, giving the "unbounded... or backed by a
// mailbox per peer" option spec.md allows.
type Mailbox struct {
	mu     sync.Mutex
	queue  []any
	signal chan struct{}
	closed bool
}

// NewMailbox returns an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{signal: make(chan struct{}, 1)}
}

// Send enqueues msg. Never blocks; a no-op once the mailbox is closed.
func (m *Mailbox) Send(msg any) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Recv blocks until a message is available, the mailbox is closed, or
// done fires. ok is false when the mailbox is closed and drained, or
// when done fires before a message is available.
func (m *Mailbox) Recv(done <-chan struct{}) (msg any, ok bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg = m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-m.signal:
		case <-done:
			return nil, false
		}
	}
}

// Close marks the mailbox closed. Queued messages already enqueued
// remain retrievable via Recv until drained; after that Recv returns
// ok == false.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}
