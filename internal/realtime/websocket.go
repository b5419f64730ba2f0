// Package realtime bridges broadcaster subscriptions to WebSocket clients.
// It is a transport shim: join/leave map to subscribe/unsubscribe, events
// serialize to JSON, and nothing here touches auction state directly.
package realtime

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"live-auction/internal/broadcast"
	model "live-auction/internal/models"
	"live-auction/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin checks belong to the deployment's proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotSource provides the current leaderboard for a fresh subscriber;
// joining replays no history, so the first frame is always a snapshot.
type SnapshotSource interface {
	Snapshot(auctionID string) (model.LeaderboardSnapshot, error)
}

// WSHandler upgrades HTTP connections and streams auction events.
type WSHandler struct {
	hub       *broadcast.Hub
	snapshots SnapshotSource
}

// NewWSHandler creates a WSHandler over the given hub and snapshot source.
func NewWSHandler(hub *broadcast.Hub, snapshots SnapshotSource) *WSHandler {
	return &WSHandler{hub: hub, snapshots: snapshots}
}

// Serve handles GET /ws?auction_id=...
func (h *WSHandler) Serve(c *gin.Context) {
	auctionID := c.Query("auction_id")
	if auctionID == "" {
		utils.JSONError(c, http.StatusBadRequest, errMissingAuction, "auction_id query parameter is required")
		return
	}

	snapshot, err := h.snapshots.Snapshot(auctionID)
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, err, "auction not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("ws: upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	sub := h.hub.Subscribe(auctionID)
	utils.Info("ws: subscriber joined", map[string]any{
		"auction_id":    auctionID,
		"subscriber_id": sub.ID,
	})

	go h.writeLoop(conn, sub, snapshot)
	h.readLoop(conn, sub)
}

// writeLoop sends the join snapshot, then streams events until the
// subscription closes or a write fails.
func (h *WSHandler) writeLoop(conn *websocket.Conn, sub *broadcast.Subscription, snapshot model.LeaderboardSnapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	first := model.AuctionEvent{
		Kind:      model.EventLeaderboard,
		AuctionID: sub.AuctionID,
		Timestamp: snapshot.GeneratedAt,
		Payload:   snapshot,
	}
	if err := h.write(conn, first); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := h.write(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, ev model.AuctionEvent) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// readLoop drains the connection to detect disconnects; inbound frames carry
// no commands, bids arrive over HTTP.
func (h *WSHandler) readLoop(conn *websocket.Conn, sub *broadcast.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
		utils.Info("ws: subscriber left", map[string]any{
			"auction_id":    sub.AuctionID,
			"subscriber_id": sub.ID,
		})
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

var errMissingAuction = errors.New("missing auction_id")
