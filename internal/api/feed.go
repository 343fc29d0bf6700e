package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rma-advocacia/client-portal/internal/models"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedMessage is a single frame sent over the progress feed
type FeedMessage struct {
	Type     string           `json:"type"`
	Command  string           `json:"command,omitempty"`
	Progress *models.Progress `json:"progress,omitempty"`
	At       time.Time        `json:"at"`
	Message  string           `json:"message,omitempty"`
}

// handleFeed streams progress events for the authenticated client
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())

	// Load first: it may end feeds of a session the store expired
	if _, err := s.manager.Progress(r.Context(), client); err != nil {
		respondCommandError(w, r, err, "open feed")
		return
	}

	// Subscribe before the snapshot so no mutation falls in between
	events, cancelSub := s.manager.Subscribe(client.ID())
	defer cancelSub()

	progress, err := s.manager.Progress(r.Context(), client)
	if err != nil {
		respondCommandError(w, r, err, "open feed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("progress feed connected", "client", client.MaskedCode())

	if err := sendFeedMessage(conn, FeedMessage{
		Type:     "snapshot",
		Progress: &progress,
		At:       time.Now().UTC(),
	}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Read from WebSocket only to observe close and pong frames
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("feed read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("progress feed disconnected", "client", client.MaskedCode())
			return
		case ev, ok := <-events:
			if !ok {
				// Session closed
				sendFeedMessage(conn, FeedMessage{Type: "closed", At: time.Now().UTC(), Message: "session closed"})
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(feedWriteWait))
				return
			}
			p := ev.Progress
			if err := sendFeedMessage(conn, FeedMessage{
				Type:     ev.Type,
				Command:  ev.Command,
				Progress: &p,
				At:       ev.At,
			}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		}
	}
}

func sendFeedMessage(conn *websocket.Conn, msg FeedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal feed message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send feed message", "error", err)
		return err
	}
	return nil
}
