// Package handler implements the per-connection actor described in
// spec.md §4.3: one instance per accepted WebSocket, driving the
// JOIN -> ACTIVE -> LEAVING state machine against the shared registry.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jhead/meshsignal/pkg/registry"
	"github.com/jhead/meshsignal/pkg/signaling"
)

const (
	// MaxMessageSize caps a single text frame; SDP blobs are the
	// largest payload the hub ever sees (jhead-lanscape/signaling used
	// the same 64KB figure for the same reason).
	MaxMessageSize = 64 * 1024
	writeTimeout   = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// Accept returns an http.HandlerFunc that upgrades each request to a
// WebSocket and runs the connection's full lifecycle to completion
// (join, relay pump, leave), blocking until the peer disconnects.
// Register it on the hub's listener.
func Accept(reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connID := ulid.Make().String()
		log := logger.With("conn", connID)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // signalling is peer-discovery only; no session to protect here
		})
		if err != nil {
			log.Error("websocket accept failed", "error", err)
			return
		}
		conn.SetReadLimit(MaxMessageSize)

		mailbox := registry.NewMailbox()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// JOIN: register, get our id, nothing else to send manually —
		// Join already enqueued Hello on our own mailbox and broadcast
		// AddPeer to the rest of the roster under its own lock.
		id, _ := reg.Join(mailbox)
		log = log.With("peer", id)
		log.Info("peer joined")

		done := make(chan struct{})
		go writerLoop(ctx, conn, mailbox, done, log)

		// ACTIVE: block here reading inbound frames until the client
		// disconnects or sends something unparseable.
		readerLoop(ctx, conn, reg, id, log)

		// LEAVING: remove from the registry and broadcast RemovePeer
		// under its own critical section first, then drain/close the
		// writer — never the other order, or a concurrent Relay/Move
		// from another connection could still find this peer's entry
		// and enqueue onto an already-closed mailbox.
		reg.Leave(id)
		cancel()
		mailbox.Close()
		<-done
		conn.Close(websocket.StatusNormalClosure, "")
		log.Info("peer left")
	}
}

// writerLoop is the connection's outbound pump and, with the drain
// goroutine it starts, the only code that writes to conn: the drain
// goroutine writes the peer's mailbox messages while writerLoop itself
// sends periodic pings; spec.md §4.3 requires exactly one outbound pump
// per connection.
func writerLoop(ctx context.Context, conn *websocket.Conn, mailbox *registry.Mailbox, done chan<- struct{}, log *slog.Logger) {
	defer close(done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			msg, ok := mailbox.Recv(ctx.Done())
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, msg)
			cancel()
			if err != nil {
				log.Debug("write failed", "error", err)
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-drained:
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				log.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// readerLoop reads client frames in order and drives registry
// operations for each (spec.md §4.3 ACTIVE). It returns once the
// connection closes, errors, or a frame fails validation.
func readerLoop(ctx context.Context, conn *websocket.Conn, reg *registry.Registry, selfID uint64, log *slog.Logger) {
	for {
		var msg signaling.ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}

		if !msg.Validate() {
			// Malformed client JSON: close the connection, no
			// diagnostic frame (spec.md §7).
			log.Debug("malformed client message", "type", msg.Type)
			return
		}

		switch msg.Type {
		case signaling.ClientMessageTypePeer:
			switch reg.Relay(selfID, *msg.Message) {
			case registry.RelayDelivered:
				log.Debug("relay delivered", "to", msg.Message.Peer, "type", msg.Message.Type)
			case registry.RelayTargetNotFound:
				log.Debug("relay target not found", "to", msg.Message.Peer)
			}

		case signaling.ClientMessageTypeMove:
			reg.Move(selfID, *msg.Pos)
		}
	}
}
