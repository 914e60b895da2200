package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepdesk/prepdesk-backend/internal/exam"
	"github.com/prepdesk/prepdesk-backend/internal/middleware"
	"github.com/prepdesk/prepdesk-backend/internal/service"
	ws "github.com/prepdesk/prepdesk-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// outboundBuffer bounds the direct-reply queue (pongs, error notices).
// Replies that cannot be queued are dropped rather than blocking the reader.
const outboundBuffer = 32

// WSHandler streams a live attempt over WebSocket: session events flow out,
// user actions flow in. All frames leave through a single writer goroutine;
// gorilla/websocket connections permit only one concurrent writer.
type WSHandler struct {
	host     *service.AttemptHost
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(host *service.AttemptHost, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		host:     host,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/stream?token=...
// Upgrades to WebSocket for the caller's current attempt. The server
// pushes ticks, warnings, and lifecycle events; the client sends answer,
// navigation, and end-confirmation actions.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.host.Session(claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active attempt"})
		return
	}
	events, err := h.host.Events(claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active attempt"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("user_id", claims.UserID).Logger()
	wsLog.Info().Msg("Attempt stream connected")

	// Initial full snapshot so reconnects rebuild the client view. The
	// writer goroutine has not started yet, so this write is exclusive.
	if err := ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: session.Snapshot()}); err != nil {
		wsLog.Debug().Err(err).Msg("Initial snapshot write failed")
		return
	}

	outbound := make(chan interface{}, outboundBuffer)
	done := make(chan struct{})
	go h.writeLoop(conn, session, events, outbound, done, wsLog)
	defer close(done)

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			session.SelectAnswer(msg.Option)
		case ws.ActionMark:
			session.ToggleMark()
		case ws.ActionNavigate:
			session.NavigateTo(msg.Index)
		case ws.ActionEndRequest:
			session.RequestEnd()
		case ws.ActionEndCancel:
			session.CancelEnd()
		case ws.ActionEndConfirm:
			session.ConfirmEnd()
		case ws.ActionVisibility:
			session.VisibilityLost()
		case ws.ActionPing:
			enqueue(outbound, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			enqueue(outbound, ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}
}

// enqueue queues a direct reply without ever blocking the read loop.
func enqueue(outbound chan<- interface{}, msg interface{}) {
	select {
	case outbound <- msg:
	default:
	}
}

// writeLoop is the connection's only writer. It forwards session events and
// direct replies until the read loop closes done. Write failures end the
// loop; the read loop then notices the broken connection on its own.
func (h *WSHandler) writeLoop(conn *websocket.Conn, session *exam.Session, events <-chan exam.Event, outbound <-chan interface{}, done <-chan struct{}, wsLog zerolog.Logger) {
	for {
		select {
		case <-done:
			return
		case msg := <-outbound:
			if err := ws.WriteTyped(conn, msg); err != nil {
				wsLog.Debug().Err(err).Msg("Reply write failed")
				return
			}
		case ev := <-events:
			if err := h.writeEvent(conn, session, ev); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}
		}
	}
}

func (h *WSHandler) writeEvent(conn *websocket.Conn, session *exam.Session, ev exam.Event) error {
	switch ev.Type {
	case exam.EventActive:
		// The questions arrived; the client needs the full paper.
		return ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: session.Snapshot()})
	case exam.EventTick:
		return ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: ev.RemainingSeconds})
	case exam.EventProctorWarning:
		return ws.WriteTyped(conn, ws.WarningResponse{Event: ws.EventWarning, AttemptsLeft: ev.AttemptsLeft})
	case exam.EventCompleted:
		return ws.WriteTyped(conn, ws.CompletedResponse{Event: ws.EventCompleted, Result: ev.Result})
	case exam.EventFailed:
		return ws.WriteTyped(conn, ws.FailedResponse{Event: ws.EventFailed, Cause: ev.Cause})
	default:
		return nil
	}
}
