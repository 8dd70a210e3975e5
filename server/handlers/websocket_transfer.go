package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/core"
)

const wsWriteTimeout = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Websocket message types sent by the server.
const (
	WSMessagePlan   = "plan"
	WSMessageEvent  = "event"
	WSMessageReport = "report"
	WSMessageError  = "error"
)

// WSEvent is a transfer event as sent over the websocket
type WSEvent struct {
	ReportID uuid.UUID `json:"report_id"`
	Op       string    `json:"op"`
	Key      string    `json:"key"`
	Target   string    `json:"target,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// WSMessage is one server message of a websocket transfer
type WSMessage struct {
	Type   string                `json:"type"`
	Plan   *TransferPlanResponse `json:"plan,omitempty"`
	Event  *WSEvent              `json:"event,omitempty"`
	Report *core.TransferReport  `json:"report,omitempty"`
	Error  *ErrorResponse        `json:"error,omitempty"`
}

// wsWriter serialises writes to one connection.
type wsWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *zap.Logger
}

func (w *wsWriter) send(msg WSMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := w.conn.WriteJSON(msg); err != nil {
		w.logger.Warn("Failed writing websocket message",
			zap.String("type", msg.Type),
			zap.Error(err))
	}
}

func (w *wsWriter) fail(err error) {
	_, code := StatusForError(err)
	w.send(WSMessage{Type: WSMessageError, Error: &ErrorResponse{Code: code, Message: err.Error()}})
}

func (w *wsWriter) close(code int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(5*time.Second))
}

// TransferWebSocket handles GET /v1/transfers/ws. The client sends one
// TransferRequest as JSON; the server answers with the plan, one event per
// attempted object and finally the report.
func (a *API) TransferWebSocket(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, auth.ActionTransfer)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("Failed to upgrade websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	ws := &wsWriter{conn: conn, logger: a.logger}

	var req TransferRequest
	if err := conn.ReadJSON(&req); err != nil {
		a.logger.Debug("Failed reading websocket transfer request", zap.Error(err))
		ws.close(websocket.CloseUnsupportedData, "invalid transfer request")
		return
	}

	plan, err := a.plan(c.ctx, req)
	if err != nil {
		ws.fail(err)
		ws.close(websocket.CloseNormalClosure, "transfer rejected")
		return
	}
	preview := planResponse(plan)
	ws.send(WSMessage{Type: WSMessagePlan, Plan: &preview})

	report, err := a.engine.Transfer(c.ctx, plan.Request, func(ev core.TransferEvent) {
		msg := &WSEvent{ReportID: ev.ReportID, Op: ev.Op, Key: ev.Key, Target: ev.Target}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
		ws.send(WSMessage{Type: WSMessageEvent, Event: msg})
	})
	if err != nil {
		ws.fail(err)
		if report == nil {
			ws.close(websocket.CloseNormalClosure, "transfer failed")
			return
		}
	}

	ws.send(WSMessage{Type: WSMessageReport, Report: report})
	ws.close(websocket.CloseNormalClosure, "transfer complete")
}
