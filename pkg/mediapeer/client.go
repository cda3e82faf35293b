package mediapeer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jhead/meshsignal/pkg/signaling"
)

// Client connects to a meshsignal hub and negotiates a real WebRTC
// connection with every peer it's told about, via the relay. It
// mirrors jhead-lanscape/lanscape-agent's SignalingClient, adapted to
// this hub's flat-mesh, integer-peer-id protocol (no topic path, no
// "welcome"/"peer-list" split — one Hello carries both).
type Client struct {
	url     string
	webrtc  *WebRTCManager
	logger  *slog.Logger
	conn    *websocket.Conn
	selfID  uint64
	localID string // opaque uuid for this client's own logs; never sent on the wire

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a client that will dial url (e.g. "ws://localhost:4000/").
func New(url string, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	localID := uuid.NewString()
	logger = logger.With("local", localID)
	return &Client{
		url:     url,
		webrtc:  NewWebRTCManager(logger),
		logger:  logger,
		localID: localID,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect dials the hub and starts the read loop. It returns once the
// connection is established; Hello's self id is delivered to onSelfID.
func (c *Client) Connect(onSelfID func(id uint64)) error {
	dialCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn

	c.webrtc.OnICECandidate = c.sendICECandidate

	go c.readLoop(onSelfID)
	return nil
}

// Close disconnects and cancels any in-flight negotiation.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
	c.cancel()
}

func (c *Client) readLoop(onSelfID func(id uint64)) {
	defer c.Close()

	for {
		data, err := rawRead(c.ctx, c.conn)
		if err != nil {
			c.logger.Debug("read loop ended", "error", err)
			return
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			continue
		}

		switch head.Type {
		case "Hello":
			var hello signaling.HelloMessage
			if err := json.Unmarshal(data, &hello); err != nil {
				continue
			}
			c.selfID = hello.State.ID
			if onSelfID != nil {
				onSelfID(c.selfID)
			}
			for _, p := range hello.Peers {
				c.ensurePeer(p.ID, true)
			}

		case "AddPeer":
			var msg signaling.AddPeerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			c.ensurePeer(msg.Peer.ID, true)

		case "RemovePeer":
			var msg signaling.RemovePeerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			c.webrtc.ClosePeer(msg.Peer)

		case "MovePeer":
			// Position is cosmetic to this reference client; it has no
			// rendering surface to react to it with.

		case "PeerMessage":
			var msg signaling.PeerMessageOut
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			c.handleRelay(msg.Message)
		}
	}
}

// ensurePeer applies the same polite/impolite perfect-negotiation rule
// lanscape-agent used: the lower-numbered peer offers, the other waits.
func (c *Client) ensurePeer(peerID uint64, isInitiator bool) {
	if _, ok := c.webrtc.GetPeerConnection(peerID); ok {
		return
	}

	isPolite := c.selfID < peerID
	shouldOffer := isInitiator && isPolite

	if _, err := c.webrtc.CreatePeerConnection(peerID, shouldOffer); err != nil {
		c.logger.Error("create peer connection failed", "peer", peerID, "error", err)
		return
	}

	if shouldOffer {
		offer, err := c.webrtc.CreateOffer(peerID)
		if err != nil {
			c.logger.Error("create offer failed", "peer", peerID, "error", err)
			return
		}
		c.sendSDP(peerID, offer)
	}
}

func (c *Client) handleRelay(msg signaling.PeerRelay) {
	switch msg.Type {
	case signaling.RelayTypeSDP:
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(msg.Data, &sdp); err != nil {
			c.logger.Error("bad SDP payload", "from", msg.Peer, "error", err)
			return
		}
		c.handleSDP(msg.Peer, sdp)

	case signaling.RelayTypeICECandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(msg.Data, &cand); err != nil {
			c.logger.Error("bad ICE payload", "from", msg.Peer, "error", err)
			return
		}
		if err := c.webrtc.AddICECandidate(msg.Peer, cand); err != nil {
			c.logger.Debug("add ICE candidate failed", "from", msg.Peer, "error", err)
		}
	}
}

func (c *Client) handleSDP(from uint64, sdp webrtc.SessionDescription) {
	switch sdp.Type {
	case webrtc.SDPTypeOffer:
		if _, ok := c.webrtc.GetPeerConnection(from); !ok {
			c.ensurePeer(from, false)
		}
		answer, err := c.webrtc.CreateAnswer(from, sdp)
		if err != nil {
			c.logger.Error("create answer failed", "from", from, "error", err)
			return
		}
		c.sendSDP(from, answer)

	case webrtc.SDPTypeAnswer:
		if err := c.webrtc.SetRemoteAnswer(from, sdp); err != nil {
			c.logger.Error("set remote answer failed", "from", from, "error", err)
		}
	}
}

func (c *Client) sendSDP(to uint64, sdp webrtc.SessionDescription) {
	data, err := json.Marshal(sdp)
	if err != nil {
		return
	}
	c.sendPeer(to, signaling.RelayTypeSDP, data)
}

func (c *Client) sendICECandidate(to uint64, candidate *webrtc.ICECandidate) {
	data, err := json.Marshal(candidate.ToJSON())
	if err != nil {
		return
	}
	c.sendPeer(to, signaling.RelayTypeICECandidate, data)
}

func (c *Client) sendPeer(to uint64, relayType string, data json.RawMessage) {
	msg := signaling.ClientMessage{
		Type: signaling.ClientMessageTypePeer,
		Message: &signaling.PeerRelay{
			Peer: to,
			Type: relayType,
			Data: data,
		},
	}
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		c.logger.Error("send failed", "to", to, "error", err)
	}
}

// Move sends this client's own new position to the hub.
func (c *Client) Move(pos signaling.Pos) error {
	msg := signaling.ClientMessage{Type: signaling.ClientMessageTypeMove, Pos: &pos}
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, c.conn, msg)
}

func rawRead(ctx context.Context, conn *websocket.Conn) (json.RawMessage, error) {
	var raw json.RawMessage
	err := wsjson.Read(ctx, conn, &raw)
	return raw, err
}
