package sockets

func WithPingIntervalSec(p int) func(*Hub) {
	return func(h *Hub) {
		h.pingIntervalSecs = p
	}
}

// WithPingMsg sets the payload carried by ping frames.
func WithPingMsg(msg []byte) func(*Hub) {
	return func(h *Hub) {
		h.pingMsg = msg
	}
}

// WithSendBuffer bounds the messages queued per client before it is dropped as too slow.
func WithSendBuffer(n int) func(*Hub) {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithCheckOrigin(f func(origin string) bool) func(*Hub) {
	return func(h *Hub) {
		h.checkOrigin = f
	}
}

func OnError(f func(error)) func(*Hub) {
	return func(h *Hub) {
		h.onError = f
	}
}

func OnConnected(f func(remoteAddr string)) func(*Hub) {
	return func(h *Hub) {
		h.onConnected = f
	}
}
