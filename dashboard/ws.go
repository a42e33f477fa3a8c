package dashboard

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var (
	errObserverClosed  = errors.New("observer closed")
	errObserverBacklog = errors.New("observer backlog full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsObserver adapts one WebSocket connection to the registry observer
// interface. Events are queued on a bounded channel and written by a single
// pump goroutine, so a slow client never blocks the registry.
type wsObserver struct {
	conn *websocket.Conn
	log  *zap.Logger
	send chan types.Event

	closeOnce sync.Once
	done      chan struct{}
}

func newWSObserver(log *zap.Logger, conn *websocket.Conn) *wsObserver {
	return &wsObserver{
		conn: conn,
		log:  log,
		send: make(chan types.Event, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send enqueues without blocking. A full backlog or closed connection
// reports an error, which makes the registry drop this observer.
func (o *wsObserver) Send(ev types.Event) error {
	select {
	case <-o.done:
		return errObserverClosed
	default:
	}
	select {
	case o.send <- ev:
		return nil
	default:
		return errObserverBacklog
	}
}

func (o *wsObserver) close() {
	o.closeOnce.Do(func() { close(o.done) })
}

func (o *wsObserver) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	for {
		select {
		case ev := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteJSON(ev); err != nil {
				o.close()
				return
			}
		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				o.close()
				return
			}
		case <-o.done:
			return
		}
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

// handleWS upgrades the connection, registers the observer (which delivers
// the initial snapshot) and then serves the client read loop until the
// connection goes away.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ob := newWSObserver(s.log, conn)
	go ob.writePump()

	s.registry.Connect(ob)
	defer func() {
		s.registry.Disconnect(ob)
		ob.close()
	}()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "ping":
			// Best effort; a full backlog will drop the observer anyway.
			_ = ob.Send(types.Event{Type: types.EventPong})
		default:
			// Unrecognized client message types are ignored.
		}
	}
}
