package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/sdrhub/internal/logger"
	"github.com/marmos91/sdrhub/pkg/protocol"
	"github.com/marmos91/sdrhub/pkg/registry"
)

// NodeInfo is one row of the admin node listing.
type NodeInfo struct {
	NodeID   uuid.UUID            `json:"node_id"`
	LastSeen time.Time            `json:"last_seen"`
	Live     bool                 `json:"live"`
	Streams  []protocol.StreamKind `json:"streams,omitempty"`
	Config   *protocol.NodeConfig `json:"config,omitempty"`
}

// ListNodes handles GET /frontend_api/nodes: every node the hub knows
// about, stored or live. Live sessions contribute the freshest last_seen;
// nodes only present in storage report the timestamp persisted with their
// config.
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	stored, err := h.store.ListConfigs(r.Context())
	if err != nil {
		logger.Error("node listing failed", "error", err)
		InternalServerError(w, "failed to list node configs")
		return
	}

	nodes := make(map[uuid.UUID]*NodeInfo, len(stored))
	for _, entry := range stored {
		cfg := entry.Config
		nodes[entry.NodeID] = &NodeInfo{
			NodeID:   entry.NodeID,
			LastSeen: entry.LastSeen,
			Config:   &cfg,
		}
	}

	for _, live := range h.registry.Snapshot() {
		info, ok := nodes[live.NodeID]
		if !ok {
			info = &NodeInfo{NodeID: live.NodeID}
			nodes[live.NodeID] = info
		}
		info.Live = true
		info.Streams = live.Streams
		if live.LastSeen.After(info.LastSeen) {
			info.LastSeen = live.LastSeen
		}
	}

	list := make([]NodeInfo, 0, len(nodes))
	for _, info := range nodes {
		list = append(list, *info)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].NodeID.String() < list[j].NodeID.String()
	})

	WriteJSONOK(w, list)
}

// ConfigUpdateRequest is the POST /frontend_api/config body.
type ConfigUpdateRequest struct {
	NodeID uuid.UUID           `json:"node_id"`
	Config protocol.NodeConfig `json:"config"`
}

// ConfigUpdateResponse reports whether the new config was pushed to a
// live node or only persisted for its next connection.
type ConfigUpdateResponse struct {
	NodeID    uuid.UUID           `json:"node_id"`
	Config    protocol.NodeConfig `json:"config"`
	Delivered bool                `json:"delivered"`
}

// UpdateConfig handles POST /frontend_api/config: validate, persist, and
// push to the node if it is connected. Persistence comes first so a crash
// between the two steps leaves the stored config authoritative.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.NodeID == uuid.Nil {
		BadRequest(w, "node_id is required")
		return
	}
	if err := req.Config.Validate(); err != nil {
		UnprocessableEntity(w, err.Error())
		return
	}

	if err := h.store.PutConfig(r.Context(), req.NodeID, req.Config); err != nil {
		logger.Error("config persist failed", "node_id", req.NodeID, "error", err)
		InternalServerError(w, "failed to persist config")
		return
	}

	delivered := false
	if session, ok := h.registry.Lookup(req.NodeID); ok {
		err := session.Send(protocol.SendConfig{Config: req.Config})
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, registry.ErrSessionClosed):
			logger.Debug("node disconnected before config push", "node_id", req.NodeID)
		default:
			logger.Warn("config push failed", "node_id", req.NodeID, "error", err)
		}
	}

	logger.Info("node config updated",
		"node_id", req.NodeID,
		"freq", req.Config.Freq,
		"delivered", delivered,
	)
	WriteJSON(w, http.StatusOK, ConfigUpdateResponse{
		NodeID:    req.NodeID,
		Config:    req.Config,
		Delivered: delivered,
	})
}
