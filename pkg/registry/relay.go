package registry

import "github.com/jhead/meshsignal/pkg/signaling"

// RelayResult reports the outcome of a directed Peer-message relay,
// mirroring the teacher's Server.Relay return convention
// (jhead-lanscape/signaling/pkg/signaling/server.go) adapted to the
// flat-mesh, no-topic model this hub implements.
type RelayResult int

const (
	RelayDelivered RelayResult = iota
	RelayTargetNotFound
)

// Relay implements spec.md §4.1's rewrite rule: given an inbound Peer
// message from fromID addressed (via msg.Peer) to some other peer, it
// delivers a PeerMessage to that addressee with Peer rewritten to
// fromID. An unknown addressee is reported, not treated as an error —
// the caller silently continues (spec.md §4.1, §7).
func (r *Registry) Relay(fromID uint64, msg signaling.PeerRelay) RelayResult {
	to := msg.Peer
	out := signaling.NewPeerMessage(fromID, msg)
	if r.SendTo(to, out) {
		return RelayDelivered
	}
	return RelayTargetNotFound
}
