package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessageValidate(t *testing.T) {
	cases := []struct {
		name string
		msg  ClientMessage
		want bool
	}{
		{"valid peer/SDP", ClientMessage{Type: "Peer", Message: &PeerRelay{Peer: 2, Type: RelayTypeSDP, Data: []byte("{}")}}, true},
		{"valid peer/ICE", ClientMessage{Type: "Peer", Message: &PeerRelay{Peer: 2, Type: RelayTypeICECandidate, Data: []byte("{}")}}, true},
		{"peer missing message", ClientMessage{Type: "Peer"}, false},
		{"peer unknown payload type", ClientMessage{Type: "Peer", Message: &PeerRelay{Peer: 2, Type: "Bogus"}}, false},
		{"valid move", ClientMessage{Type: "Move", Pos: &Pos{X: 1, Y: 2}}, true},
		{"move missing pos", ClientMessage{Type: "Move"}, false},
		{"unknown type", ClientMessage{Type: "Teleport"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.msg.Validate())
		})
	}
}

func TestClientMessageDecodesWireFormat(t *testing.T) {
	raw := `{"type":"Peer","message":{"peer":2,"type":"SDP","data":{"type":"offer","sdp":"v=0..."}}}`
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.True(t, msg.Validate())
	assert.Equal(t, uint64(2), msg.Message.Peer)
	assert.Equal(t, "SDP", msg.Message.Type)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0..."}`, string(msg.Message.Data))
}

func TestHelloRoundTrip(t *testing.T) {
	hello := NewHello(PeerState{ID: 1, Pos: Pos{X: 1, Y: 2}}, []PeerState{{ID: 2, Pos: Pos{X: 3, Y: 4}}})

	encoded, err := json.Marshal(hello)
	require.NoError(t, err)

	var decoded HelloMessage
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, hello, decoded)

	reEncoded, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(encoded), string(reEncoded))
}

func TestHelloNeverListsSelfAmongPeers(t *testing.T) {
	hello := NewHello(PeerState{ID: 1}, []PeerState{{ID: 2}, {ID: 3}})
	for _, p := range hello.Peers {
		assert.NotEqual(t, hello.State.ID, p.ID)
	}
}

func TestNewPeerMessageRewritesSourceNotAddressee(t *testing.T) {
	relay := PeerRelay{Peer: 2, Type: RelayTypeICECandidate, Data: []byte(`{"candidate":"..."}`)}
	out := NewPeerMessage(1, relay)

	assert.Equal(t, uint64(1), out.Message.Peer) // source, not original addressee (2)
	assert.Equal(t, RelayTypeICECandidate, out.Message.Type)
	assert.JSONEq(t, `{"candidate":"..."}`, string(out.Message.Data))
}

func TestServerMessageWireShapes(t *testing.T) {
	add := NewAddPeer(PeerState{ID: 5, Pos: Pos{X: 1, Y: 2}})
	data, err := json.Marshal(add)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"AddPeer","peer":{"id":5,"pos":{"x":1,"y":2}}}`, string(data))

	remove := NewRemovePeer(5)
	data, err = json.Marshal(remove)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"RemovePeer","peer":5}`, string(data))

	move := NewMovePeer(5, Pos{X: 10, Y: 20})
	data, err = json.Marshal(move)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MovePeer","peer":5,"pos":{"x":10,"y":20}}`, string(data))
}

func TestIsRelayPayloadType(t *testing.T) {
	assert.True(t, IsRelayPayloadType("SDP"))
	assert.True(t, IsRelayPayloadType("ICECandidate"))
	assert.False(t, IsRelayPayloadType("Video"))
}
