package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Conn wraps one websocket connection with a buffered outbound queue and
// connection-local liveness bookkeeping. Sends are fire-and-forget: a full
// buffer means the peer stopped draining and the connection is closed.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	// alive flips false on every ping and back to true on the peer's pong.
	alive atomic.Bool

	log zerolog.Logger
}

func newConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	c := &Conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		log:  log,
	}
	c.alive.Store(true)
	return c
}

// Send enqueues one frame. Never blocks; a slow consumer is terminated
// instead of stalling broadcasts to other players.
func (c *Conn) Send(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Warn().Msg("send buffer full, closing connection")
		c.Terminate()
	}
}

// Terminate force-closes the connection and stops its pumps.
func (c *Conn) Terminate() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) markAlive() {
	c.alive.Store(true)
}

// checkAlive implements one heartbeat tick: reports whether a pong arrived
// since the previous ping and re-arms the flag for the next interval.
func (c *Conn) checkAlive() bool {
	return c.alive.Swap(false)
}

func (c *Conn) readMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// writePump drains the send queue onto the socket. Runs for the connection's
// lifetime in its own goroutine.
func (c *Conn) writePump() {
	defer c.Terminate()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}
