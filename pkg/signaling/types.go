// Package signaling defines the wire schema exchanged between the mesh
// signalling hub and its connected peers. Every message is a JSON text
// frame discriminated by a "type" field; see spec.md §4.1 for the
// authoritative description.
package signaling

import "encoding/json"

// Pos is a peer's location in the shared 2D space. The initial position
// is drawn from [0, 800) x [0, 600); a Move may set any value.
type Pos struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// PeerState is the (id, pos) pair carried in Hello and AddPeer.
type PeerState struct {
	ID  uint64 `json:"id"`
	Pos Pos    `json:"pos"`
}

// PeerRelay is the flattened envelope carried inside a client's "Peer"
// message and a server's "PeerMessage": an addressee/source peer id
// alongside an opaque, type-tagged SDP or ICE candidate payload. The
// same struct serves both directions — on relay the hub rewrites Peer
// from addressee to source, nothing else changes.
type PeerRelay struct {
	Peer uint64          `json:"peer"`
	Type string          `json:"type"` // "ICECandidate" or "SDP"
	Data json.RawMessage `json:"data"`
}

const (
	RelayTypeICECandidate = "ICECandidate"
	RelayTypeSDP          = "SDP"
)

// IsRelayPayloadType reports whether t is a recognized PeerMessageData
// discriminator. The hub never inspects Data itself (spec.md §1), only
// the envelope's shape.
func IsRelayPayloadType(t string) bool {
	return t == RelayTypeICECandidate || t == RelayTypeSDP
}

// ClientMessage is everything a connected peer may send. Exactly one of
// Message (type == "Peer") or Pos (type == "Move") is populated; which
// one is determined by Type.
type ClientMessage struct {
	Type    string     `json:"type"`
	Message *PeerRelay `json:"message,omitempty"`
	Pos     *Pos       `json:"pos,omitempty"`
}

const (
	ClientMessageTypePeer = "Peer"
	ClientMessageTypeMove = "Move"
)

// Validate reports whether the decoded message carries the fields its
// Type requires. A failure here is treated identically to malformed
// JSON: the connection is closed (spec.md §7).
func (m ClientMessage) Validate() bool {
	switch m.Type {
	case ClientMessageTypePeer:
		return m.Message != nil && IsRelayPayloadType(m.Message.Type)
	case ClientMessageTypeMove:
		return m.Pos != nil
	default:
		return false
	}
}

// The ServerMessage variants below are deliberately separate struct
// types rather than one flattened struct: AddPeer's "peer" field is an
// object ({id, pos}) while RemovePeer's and MovePeer's "peer" field is
// a bare integer, which encoding/json cannot express as two shapes of
// one Go field. Each variant is self-describing via its own literal
// Type value and is sent on the wire through an untyped outbound
// channel (see pkg/registry).

// HelloMessage is always the first frame sent to a newly joined peer.
type HelloMessage struct {
	Type  string      `json:"type"` // "Hello"
	State PeerState   `json:"state"`
	Peers []PeerState `json:"peers"`
}

func NewHello(self PeerState, others []PeerState) HelloMessage {
	if others == nil {
		others = []PeerState{}
	}
	return HelloMessage{Type: "Hello", State: self, Peers: others}
}

// AddPeerMessage announces a newcomer to every other connected peer.
type AddPeerMessage struct {
	Type string    `json:"type"` // "AddPeer"
	Peer PeerState `json:"peer"`
}

func NewAddPeer(p PeerState) AddPeerMessage {
	return AddPeerMessage{Type: "AddPeer", Peer: p}
}

// RemovePeerMessage announces a departure to every remaining peer.
type RemovePeerMessage struct {
	Type string `json:"type"` // "RemovePeer"
	Peer uint64 `json:"peer"`
}

func NewRemovePeer(id uint64) RemovePeerMessage {
	return RemovePeerMessage{Type: "RemovePeer", Peer: id}
}

// MovePeerMessage announces a position update to every connected peer,
// including the mover (spec.md §9, Open Questions).
type MovePeerMessage struct {
	Type string `json:"type"` // "MovePeer"
	Peer uint64 `json:"peer"`
	Pos  Pos    `json:"pos"`
}

func NewMovePeer(id uint64, pos Pos) MovePeerMessage {
	return MovePeerMessage{Type: "MovePeer", Peer: id, Pos: pos}
}

// PeerMessageOut is a relayed Peer message. Message.Peer has been
// rewritten from the addressee's id (as the sender supplied it) to the
// sender's id, so the recipient always sees who sent it.
type PeerMessageOut struct {
	Type    string    `json:"type"` // "PeerMessage"
	Message PeerRelay `json:"message"`
}

func NewPeerMessage(sourceID uint64, data PeerRelay) PeerMessageOut {
	data.Peer = sourceID
	return PeerMessageOut{Type: "PeerMessage", Message: data}
}
