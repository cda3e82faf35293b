// Package registry implements the peer registry and the broadcast/relay
// core described in spec.md §4.2 and §4.4: the process-wide mapping from
// peer id to peer state, and the directed/fan-out delivery operations
// built on top of it.
package registry

import (
	"math/rand/v2"
	"sync"

	"github.com/jhead/meshsignal/pkg/signaling"
)

// NoExcept is the "except: none" sentinel for Broadcast. Peer ids are
// assigned starting at 1 (see Join), so 0 never collides with a real id.
const NoExcept uint64 = 0

// Pos mirrors signaling.Pos; aliased so the registry's public API can
// talk about positions without every caller importing the signaling
// package too.
type Pos = signaling.Pos

type peerEntry struct {
	pos Pos
	out *Mailbox
}

// Registry holds the live roster for the one flat mesh this hub serves.
// All mutation, and every broadcast/directed send that mutation
// triggers, happens while mu is held: spec.md §4.2 requires the set of
// addressees for a broadcast to come from the same atomic snapshot that
// produced the state transition, and Mailbox.Send never suspends, so
// holding the lock across the sends costs nothing and closes the gap a
// "compute snapshot, unlock, then send" split would leave open. This is
// a plain sync.Mutex + map, not the teacher's sync.Map-backed Topic
// (jhead-lanscape/signaling/pkg/signaling/topic.go), which only
// snapshots-then-mutates and accepts races on topic cleanup as
// best-effort; see DESIGN.md.
type Registry struct {
	mu     sync.Mutex
	peers  map[uint64]*peerEntry
	nextID uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{peers: make(map[uint64]*peerEntry)}
}

// PeerRecord is a point-in-time (id, pos) view of a registry entry.
type PeerRecord struct {
	ID  uint64
	Pos Pos
}

// Join assigns a fresh id from a counter that starts at 1 and is never
// reset, so ids are never reused even after the highest one leaves; draws a
// random initial position, inserts the peer's mailbox, and — while still
// holding the registry — enqueues Hello on the new peer's own mailbox
// and broadcasts AddPeer to everyone already present, in that order
// (spec.md §4.3 JOIN, §3 peer-record lifecycle). Returns the new id and
// a snapshot of the roster as it stood before this join, for the caller
// to log or inspect.
func (r *Registry) Join(out *Mailbox) (id uint64, others []PeerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id = r.nextID + 1
	r.nextID = id
	pos := randomPos()
	self := signaling.PeerState{ID: id, Pos: pos}

	otherStates := make([]signaling.PeerState, 0, len(r.peers))
	others = make([]PeerRecord, 0, len(r.peers))
	for pid, e := range r.peers {
		otherStates = append(otherStates, signaling.PeerState{ID: pid, Pos: e.pos})
		others = append(others, PeerRecord{ID: pid, Pos: e.pos})
	}

	out.Send(signaling.NewHello(self, otherStates))

	r.peers[id] = &peerEntry{pos: pos, out: out}

	addMsg := signaling.NewAddPeer(self)
	for _, e := range r.peers {
		if e.out == out {
			continue
		}
		e.out.Send(addMsg)
	}

	return id, others
}

// Leave removes id's record, if present, and broadcasts RemovePeer to
// everyone who remains, all under the same critical section. Idempotent:
// a second Leave for an already-removed id is a no-op and returns false.
func (r *Registry) Leave(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, present := r.peers[id]; !present {
		return false
	}
	delete(r.peers, id)

	r.broadcastLocked(signaling.NewRemovePeer(id), NoExcept)
	return true
}

// Move updates id's position, if the peer is still present, and
// broadcasts MovePeer to every connected peer, including the mover
// itself (spec.md §9 Open Questions, §8 scenario 5). Returns false if
// id is already gone.
func (r *Registry) Move(id uint64, pos Pos) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, present := r.peers[id]
	if !present {
		return false
	}
	e.pos = pos

	r.broadcastLocked(signaling.NewMovePeer(id, pos), NoExcept)
	return true
}

// SendTo enqueues msg on id's mailbox if id is present; it is a silent
// no-op otherwise (spec.md §4.1: "if dst is not in the registry, the
// message is silently dropped"). Returns whether a mailbox was found.
func (r *Registry) SendTo(id uint64, msg any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, present := r.peers[id]
	if !present {
		return false
	}
	e.out.Send(msg)
	return true
}

// Broadcast enqueues msg on every connected peer's mailbox except the
// one whose id equals except (pass NoExcept to exclude nobody). Exposed
// directly, in addition to the mutation-triggered broadcasts above,
// because spec.md §4.2 names it as its own registry primitive; Leave
// and Move are themselves built on the same broadcastLocked helper this
// wraps, so the primitive is exercised on every mutation path, not just
// its own tests.
func (r *Registry) Broadcast(msg any, except uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcastLocked(msg, except)
}

// broadcastLocked enqueues msg on every connected peer's mailbox except
// the one whose id equals except. Callers must already hold r.mu.
func (r *Registry) broadcastLocked(msg any, except uint64) {
	for pid, e := range r.peers {
		if pid == except {
			continue
		}
		e.out.Send(msg)
	}
}

// Len reports the number of connected peers. Intended for tests and
// diagnostics, not for any decision the protocol itself makes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// randomPos draws (x, y) uniformly from [0, 800) x [0, 600). math/rand/v2's
// package-level functions use a global, auto-seeded source that is safe
// for concurrent use without an explicit lock — the "shared read-only
// (internally synchronized)" randomness source spec.md §5 describes.
func randomPos() Pos {
	return Pos{
		X: rand.Float32() * 800,
		Y: rand.Float32() * 600,
	}
}
