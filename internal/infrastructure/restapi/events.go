package restapi

import (
	"net/http"
	"slices"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/app/service"
	"fundchain/internal/domain/entity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	subscriberBuffer = 64
)

// EventSource is the hub the stream subscribes to.
type EventSource interface {
	Subscribe(buffer int) (string, <-chan service.Event, func())
}

// EventMessage is one frame sent over /events.
type EventMessage struct {
	Type        string               `json:"type"`
	At          time.Time            `json:"at"`
	Session     *SessionResponse     `json:"session,omitempty"`
	Asks        []AskResponse        `json:"asks,omitempty"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// EventStream pushes session, ask and transaction changes to websocket clients.
type EventStream struct {
	source   EventSource
	session  SessionController
	network  entity.NetworkDefinition
	upgrader websocket.Upgrader
	logger   port.Logger
}

// NewEventStream creates a new EventStream. An empty origin list or "*" accepts any origin.
func NewEventStream(source EventSource, session SessionController, network entity.NetworkDefinition, allowedOrigins []string, logger port.Logger) *EventStream {
	allowAll := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return &EventStream{
		source:  source,
		session: session,
		network: network,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Serve upgrades the request and streams events until either side closes.
// The first frame is always the current session.
func (s *EventStream) Serve(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}
	defer conn.Close()

	id, events, cancel := s.source.Subscribe(subscriberBuffer)
	defer cancel()
	s.logger.Debug("Event subscriber connected", "subscriber", id, "remote", c.ClientIP())

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	snap := toSessionResponse(s.session.Snapshot(), s.network)
	if err := s.write(conn, EventMessage{Type: string(service.EventSession), At: time.Now(), Session: &snap}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			s.logger.Debug("Event subscriber went away", "subscriber", id)
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.write(conn, s.toMessage(ev)); err != nil {
				s.logger.Debug("Event write failed", "subscriber", id, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; it exists to process pongs and notice closes.
func (s *EventStream) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *EventStream) write(conn *websocket.Conn, msg EventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *EventStream) toMessage(ev service.Event) EventMessage {
	msg := EventMessage{Type: string(ev.Type), At: ev.At}
	switch ev.Type {
	case service.EventSession:
		if ev.Session != nil {
			sess := toSessionResponse(*ev.Session, s.network)
			msg.Session = &sess
		}
	case service.EventAsks:
		msg.Asks = toAskListResponse(ev.Asks, ev.At, s.network.Decimals).Asks
	case service.EventTransaction:
		if ev.Transaction != nil {
			tx := toTransactionResponse(*ev.Transaction)
			msg.Transaction = &tx
		}
	}
	return msg
}
