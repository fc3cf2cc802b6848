package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marmos91/sdrhub/internal/logger"
	"github.com/marmos91/sdrhub/pkg/protocol"
	"github.com/marmos91/sdrhub/pkg/registry"
)

// NodeControl handles GET /node/api/control: the per-node control
// WebSocket session.
//
// Admission happens before the upgrade so a node that is already connected
// (or presents a broken cookie) gets a plain HTTP error instead of a
// socket that dies immediately. Admission is what creates the registry
// entry; every other endpoint only looks it up, so the control session
// closing tears down the whole node.
func (h *Handler) NodeControl(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeIDFromCookie(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	session, inbox, err := h.registry.AdmitControl(nodeID)
	if err != nil {
		logger.Warn("control admission rejected", "node_id", nodeID, "error", err)
		BadRequest(w, "node already has a control session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.registry.Remove(nodeID)
		return
	}

	logger.Info("node control session opened", "node_id", nodeID, "remote_addr", r.RemoteAddr)
	if h.metrics != nil {
		h.metrics.NodeAdmitted()
	}

	// Outbound pump. It must drain the inbox until the registry closes it,
	// even after the socket dies, so queued senders never block forever.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for msg := range inbox {
			frame, err := protocol.EncodeHubMessage(msg)
			if err != nil {
				logger.Error("failed to encode control message", "node_id", nodeID, "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				logger.Debug("control write failed", "node_id", nodeID, "error", err)
			}
		}
	}()

	h.controlReadLoop(r, conn, session)

	// Removing the node flips the terminate flag for its data loops,
	// closes every stream so frontends see end-of-stream, and closes the
	// inbox so the pump exits.
	h.registry.Remove(nodeID)
	<-pumpDone
	_ = conn.Close()

	if h.metrics != nil {
		h.metrics.NodeRemoved()
	}
	logger.Info("node control session closed", "node_id", nodeID)
}

// controlReadLoop dispatches inbound control messages until the socket
// fails. Undecodable frames are logged and skipped; the session survives.
func (h *Handler) controlReadLoop(r *http.Request, conn *websocket.Conn, session *registry.Session) {
	nodeID := session.NodeID()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("control read ended", "node_id", nodeID, "error", err)
			return
		}
		session.Touch(time.Now().UTC())

		if msgType != websocket.BinaryMessage {
			logger.Warn("ignoring non-binary control frame", "node_id", nodeID, "type", msgType)
			continue
		}

		msg, err := protocol.DecodeNodeMessage(data)
		if err != nil {
			logger.Warn("undecodable control frame", "node_id", nodeID, "error", err)
			continue
		}

		switch m := msg.(type) {
		case protocol.RequestConfig:
			cfg, err := h.store.GetOrSeedConfig(r.Context(), nodeID, h.nodeDefaults)
			if err != nil {
				// Storage failure is fatal to the session. The terminate
				// error is queued for the pump, which drains the inbox
				// before the socket closes, so the node still sees it.
				logger.Error("config lookup failed", "node_id", nodeID, "error", err)
				_ = session.Send(protocol.ErrorMessage{
					Msg:       "configuration storage failure",
					Terminate: true,
				})
				return
			}
			if err := session.Send(protocol.SendConfig{Config: cfg}); err != nil {
				logger.Warn("config send failed", "node_id", nodeID, "error", err)
			}

		case protocol.AckConfig:
			logger.Info("node acknowledged config",
				"node_id", nodeID,
				"freq", m.Config.Freq,
				"sample_rate", m.Config.SampleRate,
				"stream_kinds", m.Config.StreamKinds,
			)
		}
	}
}
