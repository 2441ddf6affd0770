package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tcriess/lightspeed-poker/auth"
	"github.com/tcriess/lightspeed-poker/engine"
	"github.com/tcriess/lightspeed-poker/globals"
)

const sendChannelSize = 256

// Client is a middleman between one websocket connection and the hub of the
// room it connected to.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames. Written to by the hub loop only;
	// drained by WriteLoop. It is never closed, a client is told to stop via
	// doneChan and the channel is left to the gc (closing it would require
	// extra locking between the hub loop and the transport handler for no
	// gain, compare go101.org/article/channel-closing.html).
	Send chan []byte

	// Identity resolved at upgrade time.
	Identity *auth.Identity

	// participantId is set once the client's join was applied. It is owned by
	// the hub goroutine: written and read only from inside the hub loop.
	participantId string

	doneChan  chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, identity *auth.Identity, doneChan chan struct{}) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		Send:     make(chan []byte, sendChannelSize),
		Identity: identity,
		doneChan: doneChan,
	}
}

// detach closes the underlying connection so both pump loops wind down. The
// hub calls it when it drops a client, otherwise a stuck connection would keep
// reading and submitting events for a participant already marked gone.
func (c *Client) detach() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// ReadLoop pumps frames from the websocket connection into the hub.
//
// There is one ReadLoop goroutine per connection, so all reads happen from a
// single goroutine and every event this connection submits reaches the hub in
// submission order.
func (c *Client) ReadLoop() {
	defer func() {
		c.detach()
		close(c.doneChan)
		c.hub.unregisterClient(c)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Info("ws closed unexpectedly", "error", err)
			}
			return
		}
		event, err := DecodeFrame(raw)
		if err != nil {
			// codec errors go straight back to the sender, they never reach
			// the hub loop
			if frame := EncodeError("", engine.AsError(err)); frame != nil {
				select {
				case c.Send <- frame:
				default:
				}
			}
			continue
		}
		if event == nil { // unknown frame type, ignored
			continue
		}
		c.hub.Submit <- Submission{Client: c, Event: event}
	}
}

// WriteLoop pumps frames from the Send channel to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection, so all writes
// happen from a single goroutine and clients observe snapshots in exactly the
// order the hub committed them.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				globals.AppLogger.Info("could not write to ws connection, exiting write loop", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				globals.AppLogger.Info("could not send ping message, exiting write loop")
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
