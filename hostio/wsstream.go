package hostio

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WebsocketSink streams every byte written through it to a connected
// debugger over a websocket connection, per spec §4.10's note that a
// headless embedding host may want VM output mirrored to a remote
// observer rather than (or in addition to) a local fd. It never
// participates in dispatch-core logic; cmd/heyvm does not use it and
// always writes through a StdSink.
type WebsocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
	next Sink // fallback sink for local echo, or nil
}

// NewWebsocketSink wraps conn, optionally tee-ing every write to next as
// well (typically a StdSink, so local output keeps working).
func NewWebsocketSink(conn *websocket.Conn, next Sink) *WebsocketSink {
	return &WebsocketSink{conn: conn, next: next}
}

func (w *WebsocketSink) Write(fd int, buf []byte) (int, error) {
	w.mu.Lock()
	err := w.conn.WriteMessage(websocket.BinaryMessage, append([]byte{byte(fd)}, buf...))
	w.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if w.next != nil {
		return w.next.Write(fd, buf)
	}
	return len(buf), nil
}

// Close terminates the underlying websocket connection.
func (w *WebsocketSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}
