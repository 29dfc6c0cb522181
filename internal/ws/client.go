package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/yourbite/pos-api/internal/auth"
)

const (
	// snapshotWriteWait bounds writing one snapshot or ping to a subscriber.
	snapshotWriteWait = 10 * time.Second

	// subscriberIdle drops a subscriber that has not answered a ping.
	subscriberIdle = 60 * time.Second

	// keepaliveInterval must stay below subscriberIdle.
	keepaliveInterval = (subscriberIdle * 9) / 10

	// Subscribers only send control frames.
	maxInboundFrame = 512

	// Snapshots queued per subscriber before the hub drops it.
	snapshotBacklog = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // tokens are checked before the upgrade
	},
}

// Client is one subscriber to a topic's snapshot feed.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

// watchDisconnect blocks until the subscriber goes away, then leaves the
// topic's room. Anything the subscriber sends is discarded.
func (c *Client) watchDisconnect() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundFrame)
	c.conn.SetReadDeadline(time.Now().Add(subscriberIdle))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(subscriberIdle))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws %s: read: %v", c.topic, err)
			}
			return
		}
	}
}

// deliverSnapshots writes snapshots to the subscriber, one frame each, and
// keeps the connection alive with pings. When snapshots pile up only the
// newest is written.
func (c *Client) deliverSnapshots() {
	ticker := time.NewTicker(keepaliveInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snapshot, ok := <-c.send:
			if ok {
				snapshot, ok = newestSnapshot(snapshot, c.send)
			}
			c.conn.SetWriteDeadline(time.Now().Add(snapshotWriteWait))
			if !ok {
				// Hub closed the room or dropped us.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(snapshotWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// newestSnapshot drains what is already queued behind first and returns the
// last snapshot. ok is false if the queue was closed while draining.
func newestSnapshot(first []byte, queue <-chan []byte) (latest []byte, ok bool) {
	latest = first
	for {
		select {
		case next, open := <-queue:
			if !open {
				return latest, false
			}
			latest = next
		default:
			return latest, true
		}
	}
}

// ServeWS subscribes the caller to one topic's snapshot feed.
// Endpoint: WS /ws/{topic}?token=JWT
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	if _, err := auth.ValidateToken(jwtSecret, tokenStr); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	topic := chi.URLParam(r, "topic")
	if !hub.HasTopic(topic) {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws %s: upgrade: %v", topic, err)
		return
	}

	client := &Client{
		hub:   hub,
		conn:  conn,
		topic: topic,
		send:  make(chan []byte, snapshotBacklog),
	}
	if !hub.join(client) {
		conn.Close()
		return
	}

	go client.deliverSnapshots()
	go client.watchDisconnect()
}
