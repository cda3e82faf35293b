// Package mediapeer is a reference implementation of the "media-producing
// client" spec.md treats as an external collaborator (§1): it drives a
// real github.com/pion/webrtc/v4 peer connection through this hub's
// signalling wire protocol. It is a client of the hub, never imported by
// the hub itself — adapted from jhead-lanscape/lanscape-agent's
// WebRTCManager/SignalingClient pair, narrowed to the flat-mesh, integer
// peer-id protocol this spec defines (no rooms, no Tailscale NAT
// mapping, one data channel instead of full media; no payload is sent
// over it).
package mediapeer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// WebRTCManager owns one pion PeerConnection per remote peer id.
type WebRTCManager struct {
	mu     sync.Mutex
	peers  map[uint64]*PeerConnection
	api    *webrtc.API
	logger *slog.Logger

	OnICECandidate func(peerID uint64, candidate *webrtc.ICECandidate)
	OnConnected    func(peerID uint64)
}

// PeerConnection wraps one remote peer's pion connection and data
// channel.
type PeerConnection struct {
	ID          uint64
	PC          *webrtc.PeerConnection
	DataChannel *webrtc.DataChannel
}

// NewWebRTCManager builds a manager using pion's default settings —
// the reference client has no NAT-traversal policy of its own; spec.md
// §1 leaves that to the peers, not the hub or this demo client.
func NewWebRTCManager(logger *slog.Logger) *WebRTCManager {
	return &WebRTCManager{
		peers:  make(map[uint64]*PeerConnection),
		api:    webrtc.NewAPI(),
		logger: logger,
	}
}

// CreatePeerConnection creates (or returns the existing) connection to
// peerID. isInitiator controls whether this side opens the data channel
// (and therefore sends the SDP offer) or waits for one.
func (m *WebRTCManager) CreatePeerConnection(peerID uint64, isInitiator bool) (*PeerConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.peers[peerID]; ok {
		return existing, nil
	}

	pc, err := m.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	entry := &PeerConnection{ID: peerID, PC: pc}

	if isInitiator {
		ordered := true
		dc, err := pc.CreateDataChannel("meshsignal-demo", &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create data channel: %w", err)
		}
		entry.DataChannel = dc
		m.setupDataChannel(peerID, dc)
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		m.mu.Lock()
		entry.DataChannel = dc
		m.mu.Unlock()
		m.setupDataChannel(peerID, dc)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.logger.Info("peer connection state changed", "peer", peerID, "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			if m.OnConnected != nil {
				m.OnConnected(peerID)
			}
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed:
			m.ClosePeer(peerID)
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil && m.OnICECandidate != nil {
			m.OnICECandidate(peerID, c)
		}
	})

	m.peers[peerID] = entry
	return entry, nil
}

func (m *WebRTCManager) setupDataChannel(peerID uint64, dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		m.logger.Info("data channel opened", "peer", peerID)
	})
	dc.OnClose(func() {
		m.logger.Info("data channel closed", "peer", peerID)
	})
}

// GetPeerConnection returns the existing connection for peerID, if any.
func (m *WebRTCManager) GetPeerConnection(peerID uint64) (*PeerConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[peerID]
	return p, ok
}

// ClosePeer tears down and forgets peerID's connection.
func (m *WebRTCManager) ClosePeer(peerID uint64) {
	m.mu.Lock()
	p, ok := m.peers[peerID]
	delete(m.peers, peerID)
	m.mu.Unlock()

	if ok {
		p.PC.Close()
	}
}

// CreateOffer creates and sets a local offer for peerID.
func (m *WebRTCManager) CreateOffer(peerID uint64) (webrtc.SessionDescription, error) {
	p, ok := m.GetPeerConnection(peerID)
	if !ok {
		return webrtc.SessionDescription{}, fmt.Errorf("no peer connection for %d", peerID)
	}
	offer, err := p.PC.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.PC.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

// CreateAnswer sets the remote offer and creates/sets a local answer.
func (m *WebRTCManager) CreateAnswer(peerID uint64, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	p, ok := m.GetPeerConnection(peerID)
	if !ok {
		return webrtc.SessionDescription{}, fmt.Errorf("no peer connection for %d", peerID)
	}
	if err := p.PC.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := p.PC.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.PC.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// SetRemoteAnswer applies a remote answer to a connection we offered on.
func (m *WebRTCManager) SetRemoteAnswer(peerID uint64, answer webrtc.SessionDescription) error {
	p, ok := m.GetPeerConnection(peerID)
	if !ok {
		return fmt.Errorf("no peer connection for %d", peerID)
	}
	return p.PC.SetRemoteDescription(answer)
}

// AddICECandidate applies a remote ICE candidate to peerID's connection.
func (m *WebRTCManager) AddICECandidate(peerID uint64, candidate webrtc.ICECandidateInit) error {
	p, ok := m.GetPeerConnection(peerID)
	if !ok {
		return fmt.Errorf("no peer connection for %d", peerID)
	}
	return p.PC.AddICECandidate(candidate)
}
