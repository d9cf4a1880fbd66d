package messagebus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ashokrj/supplyd/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// peerConnection serializes writes to a single peer's websocket through
// one channel and one writer goroutine, since gorilla/websocket forbids
// concurrent writers on the same connection.
type peerConnection struct {
	outgoing chan envelope
	conn     *websocket.Conn
}

// WebSocketMessageBus is the production MessageBus: one websocket
// connection per peer, an HTTP upgrade endpoint for inbound connections,
// and a dialer for outbound ones. FIFO ordering per peer falls out of
// routing every send for a peer through that peer's single writer
// goroutine.
type WebSocketMessageBus struct {
	lock     sync.Mutex
	peers    map[string]*peerConnection
	handlers map[string]func(fromPeerID string, payload []byte)
}

func NewWebSocketMessageBus() *WebSocketMessageBus {
	return &WebSocketMessageBus{
		peers:    make(map[string]*peerConnection),
		handlers: make(map[string]func(fromPeerID string, payload []byte)),
	}
}

func (b *WebSocketMessageBus) Subscribe(topic string, handler func(fromPeerID string, payload []byte)) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.handlers[topic] = handler
}

// RegisterRoutes wires the peer upgrade endpoint into an existing
// gorilla/mux router, keyed by the connecting peer's id.
func (b *WebSocketMessageBus) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/peers/{peerID}", func(w http.ResponseWriter, r *http.Request) {
		peerID := mux.Vars(r)["peerID"]

		conn, err := upgrader.Upgrade(w, r, nil)

		if err != nil {
			logging.Log.Errorf("unable to upgrade connection from peer %s: %v", peerID, err)

			return
		}

		b.accept(peerID, conn)
	})
}

func (b *WebSocketMessageBus) accept(peerID string, conn *websocket.Conn) {
	peer := &peerConnection{
		outgoing: make(chan envelope, 256),
		conn:     conn,
	}

	b.lock.Lock()
	b.peers[peerID] = peer
	b.lock.Unlock()

	go b.readLoop(peerID, peer)
	go b.writeLoop(peerID, peer)
}

func (b *WebSocketMessageBus) readLoop(peerID string, peer *peerConnection) {
	defer b.disconnect(peerID, peer)

	for {
		var msg envelope

		if err := peer.conn.ReadJSON(&msg); err != nil {
			logging.Log.Debugf("read loop for peer %s ending: %v", peerID, err)

			return
		}

		b.lock.Lock()
		handler := b.handlers[msg.Topic]
		b.lock.Unlock()

		if handler != nil {
			handler(peerID, msg.Payload)
		}
	}
}

func (b *WebSocketMessageBus) writeLoop(peerID string, peer *peerConnection) {
	for msg := range peer.outgoing {
		if err := peer.conn.WriteJSON(msg); err != nil {
			logging.Log.Debugf("write loop for peer %s ending: %v", peerID, err)
			b.disconnect(peerID, peer)

			return
		}
	}
}

func (b *WebSocketMessageBus) disconnect(peerID string, peer *peerConnection) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.peers[peerID] != peer {
		return
	}

	delete(b.peers, peerID)
	peer.conn.Close()
}

// SendOrdered enqueues payload onto peerID's write loop. A full queue is
// given up to timeoutMillis to drain before the send gives up and the
// peer is disconnected; a non-positive timeoutMillis behaves like the
// previous non-blocking attempt.
func (b *WebSocketMessageBus) SendOrdered(peerID string, topic string, payload []byte, policy IOPolicy, timeoutMillis int) SendOutcome {
	b.lock.Lock()
	peer, exists := b.peers[peerID]
	b.lock.Unlock()

	if !exists {
		return RecipientGone
	}

	select {
	case peer.outgoing <- envelope{Topic: topic, Payload: payload}:
		return Delivered
	case <-time.After(time.Duration(timeoutMillis) * time.Millisecond):
		logging.Log.Warningf("dropping connection to peer %s, outgoing queue did not drain within %dms", peerID, timeoutMillis)
		b.disconnect(peerID, peer)

		return RecipientGone
	}
}
