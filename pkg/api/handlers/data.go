package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marmos91/sdrhub/internal/logger"
	"github.com/marmos91/sdrhub/pkg/registry"
	"github.com/marmos91/sdrhub/pkg/store"
)

// terminatePollInterval is how often an ingest session checks whether its
// node has been torn down while the read is blocked.
const terminatePollInterval = time.Second

// NodeData handles
// GET /node/api/data/{kind}/{freq}/{amp}/{lna}/{vga}/{sample_rate}:
// a per-stream ingest WebSocket.
//
// The node encodes the SDR parameters it is actually running in the path,
// so every archived sample carries the tuning it was captured with. A data
// session requires a live control session; it never creates registry state
// on its own.
func (h *Handler) NodeData(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeIDFromCookie(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	kind, err := streamKindParam(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	freq, err := uintParam(r, "freq", 64)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	amp, err := uintParam(r, "amp", 8)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	lna, err := uintParam(r, "lna", 8)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	vga, err := uintParam(r, "vga", 8)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	sampleRate, err := uintParam(r, "sample_rate", 64)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	sender, session, err := h.registry.AttachStream(nodeID, kind)
	if err != nil {
		if errors.Is(err, registry.ErrNoSession) {
			BadRequest(w, "no control session for node")
			return
		}
		InternalServerError(w, "failed to attach stream")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger.Info("node data session opened",
		"node_id", nodeID, "kind", kind,
		"freq", freq, "sample_rate", sampleRate,
	)

	// The read loop blocks in ReadMessage, so a watcher closes the socket
	// out from under it once the control session tears the node down.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(terminatePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if session.Terminated() {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("data read ended", "node_id", nodeID, "kind", kind, "error", err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if session.Terminated() {
			return
		}

		now := time.Now().UTC()
		session.Touch(now)

		sample := &store.Sample{
			NodeID:     nodeID,
			Kind:       kind,
			Freq:       freq,
			Amp:        uint8(amp),
			Lna:        uint8(lna),
			Vga:        uint8(vga),
			SampleRate: sampleRate,
			Timestamp:  now,
			Data:       data,
		}
		// Archival failure is fatal for the session: dropping payloads
		// silently would leave holes in the archive with no signal to the
		// operator.
		if err := h.store.AppendSample(r.Context(), sample); err != nil {
			logger.Error("sample archival failed",
				"node_id", nodeID, "kind", kind, "error", err,
			)
			return
		}
		if h.metrics != nil {
			h.metrics.SampleIngested(kind.String(), len(data))
		}

		// Fan out only when someone is listening. Publish re-checks under
		// the bus lock, so a subscriber arriving in between just misses
		// this payload.
		if sender.SubscriberCount() >= 1 {
			if sender.Publish(data) && h.metrics != nil {
				h.metrics.SamplePublished(kind.String())
			}
		}
	}
}
