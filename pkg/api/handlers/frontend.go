package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marmos91/sdrhub/internal/logger"
	"github.com/marmos91/sdrhub/pkg/bus"
	"github.com/marmos91/sdrhub/pkg/protocol"
)

// FrontendData handles GET /frontend_api/data/{node_id}/{kind}.
//
// Without query parameters the socket streams the node's live payloads.
// With from and to (RFC 3339) it replays the archived window instead. FFT
// payloads are re-framed into smaller chunks in both modes so the browser
// renders incrementally instead of buffering whole sweeps.
func (h *Handler) FrontendData(w http.ResponseWriter, r *http.Request) {
	nodeID, err := uuid.Parse(chi.URLParam(r, "node_id"))
	if err != nil {
		BadRequest(w, "invalid node_id parameter")
		return
	}
	kind, err := streamKindParam(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if kind == protocol.StreamKindZigBee {
		BadRequest(w, "zigbee forwarding is not implemented")
		return
	}

	if r.URL.Query().Has("from") || r.URL.Query().Has("to") {
		h.frontendHistory(w, r, nodeID, kind)
		return
	}
	h.frontendRealtime(w, r, nodeID, kind)
}

// frontendRealtime subscribes the client to the node's live broadcast
// stream. The subscription attaches before the upgrade would be wrong:
// the lookup happens first so an unknown node gets a plain 404, and only
// a successful upgrade counts as a subscriber.
func (h *Handler) frontendRealtime(w http.ResponseWriter, r *http.Request, nodeID uuid.UUID, kind protocol.StreamKind) {
	sender, ok := h.registry.Stream(nodeID, kind)
	if !ok {
		NotFound(w, "node is not streaming this kind")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	rx := sender.Subscribe()
	defer rx.Close()
	if h.metrics != nil {
		h.metrics.SubscriberAttached(kind.String())
		defer h.metrics.SubscriberDetached(kind.String())
	}

	logger.Info("frontend subscribed", "node_id", nodeID, "kind", kind, "remote_addr", r.RemoteAddr)

	// Reads only serve to detect the client going away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		payload, err := rx.Recv(ctx)
		if err != nil {
			var lag *bus.LagError
			if errors.As(err, &lag) {
				// Lag is benign for live spectra: skip ahead and keep going.
				logger.Debug("frontend subscriber lagged",
					"node_id", nodeID, "kind", kind, "dropped", lag.Count,
				)
				if h.metrics != nil {
					h.metrics.PayloadsDropped(kind.String(), lag.Count)
				}
				continue
			}
			// Stream closed (node torn down) or client gone.
			logger.Debug("frontend stream ended", "node_id", nodeID, "kind", kind, "error", err)
			return
		}

		if err := writeChunked(conn, kind, payload); err != nil {
			logger.Debug("frontend write failed", "node_id", nodeID, "kind", kind, "error", err)
			return
		}
	}
}

// frontendHistory replays an archived window over the socket and closes.
// The window is resolved before the upgrade so bad parameters and empty
// windows surface as HTTP errors.
func (h *Handler) frontendHistory(w http.ResponseWriter, r *http.Request, nodeID uuid.UUID, kind protocol.StreamKind) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		BadRequest(w, "invalid from parameter, want RFC 3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		BadRequest(w, "invalid to parameter, want RFC 3339 timestamp")
		return
	}
	if !from.Before(to) {
		BadRequest(w, "from must be earlier than to")
		return
	}

	samples, err := h.store.QuerySamples(r.Context(), nodeID, kind, from, to)
	if err != nil {
		logger.Error("history query failed", "node_id", nodeID, "kind", kind, "error", err)
		InternalServerError(w, "failed to query archived samples")
		return
	}
	if len(samples) == 0 {
		NotFound(w, "no archived samples in window")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger.Info("frontend history replay",
		"node_id", nodeID, "kind", kind,
		"from", from, "to", to, "samples", len(samples),
	)

	for _, sample := range samples {
		if err := writeChunked(conn, kind, sample.Data); err != nil {
			logger.Debug("history write failed", "node_id", nodeID, "kind", kind, "error", err)
			return
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay complete"))
}

// writeChunked sends one payload to a frontend, re-framed per kind.
func writeChunked(conn *websocket.Conn, kind protocol.StreamKind, payload []byte) error {
	if kind != protocol.StreamKindFFT {
		return conn.WriteMessage(websocket.BinaryMessage, payload)
	}
	for _, chunk := range splitFFT(payload, protocol.FFTChunksPerTransfer) {
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitFFT divides an FFT sweep into n near-equal frames. A payload
// shorter than n goes out as a single frame.
func splitFFT(payload []byte, n int) [][]byte {
	if n <= 1 || len(payload) < n {
		return [][]byte{payload}
	}
	size := len(payload) / n
	chunks := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}
	return chunks
}
