// Package sockets fans messages out to websocket subscribers.
package sockets

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer = 8
	writeWait         = 10 * time.Second
)

var ErrClosed = errors.New("hub closed")

// Hub accepts websocket subscribers and broadcasts text messages to all of
// them. A new subscriber immediately receives the last broadcast message.
type Hub struct {
	upgrader         websocket.Upgrader
	pingIntervalSecs int
	pingMsg          []byte
	sendBuffer       int
	checkOrigin      func(origin string) bool
	onError          func(err error)
	onConnected      func(remoteAddr string)

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
}

type client struct {
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func New(opts ...func(*Hub)) *Hub {
	h := &Hub{
		sendBuffer: defaultSendBuffer,
		clients:    map[*client]struct{}{},
	}
	for _, o := range opts {
		o(h)
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: 15 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if h.checkOrigin == nil {
				return true
			}
			return h.checkOrigin(r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeHTTP upgrades the request and keeps the subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.error(err)
		return
	}
	c := &client{ws: ws, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	if h.onConnected != nil {
		h.onConnected(r.RemoteAddr)
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

// Broadcast queues msg for every subscriber. Subscribers whose queue is full are disconnected.
func (h *Hub) Broadcast(msg []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.last = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.removeLocked(c)
		}
	}
	return nil
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.closeOnce.Do(func() { close(c.send) })
}

// readLoop only drains control frames; subscribers have nothing to say.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		_ = c.ws.Close()
	}()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.error(err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	var tick <-chan time.Time
	if h.pingIntervalSecs > 0 {
		ticker := time.NewTicker(time.Second * time.Duration(h.pingIntervalSecs))
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.error(err)
				h.remove(c)
				return
			}
		case <-tick:
			if err := c.ws.WriteControl(websocket.PingMessage, h.pingMsg, time.Now().Add(writeWait)); err != nil {
				h.error(err)
				h.remove(c)
				return
			}
		}
	}
}

func (h *Hub) error(err error) {
	if h.onError != nil {
		h.onError(err)
	}
}
