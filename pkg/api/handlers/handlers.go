package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marmos91/sdrhub/pkg/metrics"
	"github.com/marmos91/sdrhub/pkg/protocol"
	"github.com/marmos91/sdrhub/pkg/registry"
	"github.com/marmos91/sdrhub/pkg/store"
)

// NodeIDCookie is the cookie nodes present on every WebSocket endpoint to
// identify themselves.
const NodeIDCookie = "node_id"

// Handler carries the shared dependencies of all hub endpoints.
type Handler struct {
	registry     *registry.Registry
	store        store.Store
	metrics      metrics.HubMetrics
	nodeDefaults protocol.NodeConfig
}

// New creates the hub handler set. metrics may be nil to disable
// collection.
func New(reg *registry.Registry, st store.Store, m metrics.HubMetrics, nodeDefaults protocol.NodeConfig) *Handler {
	return &Handler{
		registry:     reg,
		store:        st,
		metrics:      m,
		nodeDefaults: nodeDefaults,
	}
}

// upgrader is shared by every WebSocket endpoint. Origin checks are
// disabled: nodes are headless clients and the frontend may be served from
// a different origin than the hub.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// nodeIDFromCookie extracts and parses the node identity cookie.
func nodeIDFromCookie(r *http.Request) (uuid.UUID, error) {
	c, err := r.Cookie(NodeIDCookie)
	if err != nil {
		return uuid.Nil, fmt.Errorf("missing %s cookie", NodeIDCookie)
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s cookie: %w", NodeIDCookie, err)
	}
	return id, nil
}

// streamKindParam parses the {kind} path parameter.
func streamKindParam(r *http.Request) (protocol.StreamKind, error) {
	return protocol.ParseStreamKind(chi.URLParam(r, "kind"))
}

// uintParam parses a path parameter as an unsigned integer bounded by
// bits.
func uintParam(r *http.Request, name string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return v, nil
}
