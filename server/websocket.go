package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/report"
)

type MessageType string

const (
	MessageWaiting MessageType = "waiting"
	MessageReport  MessageType = "report"
	MessageError   MessageType = "error"
)

// Sent over /ws/report/{id}: one "waiting" message once the probe is ready for
// a client, then either "report" or "error".
type Message struct {
	Type    MessageType    `json:"type"`
	Port    int            `json:"port,omitempty"`
	Report  *report.Report `json:"report,omitempty"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
}

const wsWriteTimeout = 10 * time.Second

func (s *Server) handleReportWebsocket(w http.ResponseWriter, r *http.Request) {
	p, err := s.takeProbe(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		p.Listener.Close()
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Abandon the probe if the websocket goes away. The read loop also handles
	// control frames.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.writeMessage(conn, Message{Type: MessageWaiting, Port: p.Port()}); err != nil {
		p.Listener.Close()
		return
	}

	rep, err := s.runProbe(ctx, p)
	var msg Message
	if err != nil {
		kind := gtls.Classify(err)
		msg = Message{Type: MessageError, Error: kind.String(), Message: kind.Message()}
	} else {
		msg = Message{Type: MessageReport, Report: &rep}
	}

	if err := s.writeMessage(conn, msg); err != nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

func (s *Server) writeMessage(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}
