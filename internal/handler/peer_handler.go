package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/authority"
	"github.com/stemsi/exstem-room/internal/link"
	"github.com/stemsi/exstem-room/internal/response"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser participants send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// PeerHandler accepts participant links for the examiner node.
type PeerHandler struct {
	ctx      context.Context
	node     *authority.Node
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewPeerHandler creates a PeerHandler. Links live until ctx is cancelled
// or the participant disconnects, independent of the upgrade request.
func NewPeerHandler(ctx context.Context, node *authority.Node, allowedOrigins []string, log zerolog.Logger) *PeerHandler {
	return &PeerHandler{
		ctx:      ctx,
		node:     node,
		upgrader: buildUpgrader(allowedOrigins),
		log:      log.With().Str("component", "peer_handler").Logger(),
	}
}

// Connect godoc
// GET /peer/:peer_id
// Upgrades to the participant's link if peer_id is the claimed identifier.
func (h *PeerHandler) Connect(c *gin.Context) {
	peerID := c.Param("peer_id")
	if peerID != h.node.PeerID() {
		response.Fail(c, http.StatusNotFound, response.ErrUnknownPeer)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("peer_id", peerID).Msg("WebSocket upgrade failed")
		return
	}

	l := link.NewConn(conn, h.log).ForPeer(peerID)
	h.log.Info().Str("link_id", l.ID()).Str("remote", c.ClientIP()).Msg("Participant connected")
	l.Serve(h.ctx, h.node.Events())
}
