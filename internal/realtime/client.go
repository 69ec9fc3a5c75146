package realtime

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// ClientOptions tunes the per-connection transport behavior.
type ClientOptions struct {
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

// Client is one websocket connection. Its read loop drives the session state
// machine; a dedicated write pump drains the send channel so a stalled
// client never blocks the shared broadcast path.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan string
	opts   ClientOptions
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// ServeWs handles the websocket upgrade and runs the connection until it
// closes. The connection starts in the Connecting state; the first join
// message moves it to Joined.
func ServeWs(sessions *Sessions, opts ClientOptions, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:     uuid.New().String(),
			conn:   conn,
			send:   make(chan string, opts.SendBuffer),
			opts:   opts,
			logger: logger,
		}
		go client.writePump()
		client.readPump(sessions)
	}
}

// Send enqueues a payload for the write pump. It never blocks: a full buffer
// or a closed connection fails immediately so the broadcaster can apply its
// backpressure policy.
func (c *Client) Send(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the outbound side. The write pump drains already-queued
// payloads, writes the close frame, and closes the transport. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

func (c *Client) readPump(sessions *Sessions) {
	var sess *Session
	defer func() {
		if sess != nil {
			sessions.Leave(sess.ParticipantID)
		}
		_ = c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		msg, err := Classify(data)
		if err != nil {
			c.logger.Debug("dropping malformed message", zap.String("client_id", c.id))
			continue
		}

		if sess == nil {
			// Connecting: only a join is meaningful, everything else is
			// dropped.
			if msg.Kind != KindJoin {
				continue
			}
			roomID, perr := strconv.ParseInt(msg.RoomID, 10, 64)
			if perr != nil {
				c.logger.Debug("join with bad room id", zap.String("room_id", msg.RoomID))
				return
			}
			joined, jerr := sessions.Join(c, roomID, msg.Name)
			if jerr != nil {
				// Unknown or deleted room: close without entering Joined.
				c.logger.Debug("join rejected", zap.Int64("room_id", roomID), zap.Error(jerr))
				return
			}
			sess = joined
			continue
		}

		switch msg.Kind {
		case KindVote:
			if err := sessions.Vote(sess, msg.Point); err != nil {
				// Invalid vote: ignore, keep the connection open.
				c.logger.Debug("vote ignored",
					zap.Int64("participant_id", sess.ParticipantID),
					zap.Error(err))
			}
		case KindReveal:
			_ = sessions.Reveal(sess, msg.Show)
		case KindClear:
			_ = sessions.Clear(sess)
		case KindJoin, KindNone:
			// Already joined / recognized no-op.
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
