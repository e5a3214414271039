package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	inboxReadLimit   = 4 * 1024
	inboxIdleTimeout = 90 * time.Second
)

var inboxUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS layer; the session is checked before upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// InboxWebSocket streams new messages for the caller. The connection is
// read-only from the client's side; anything the client sends, including
// pings, only keeps it alive.
func (a *API) InboxWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(w, r)
	if !ok {
		return
	}
	userID := user.ID.Hex()

	conn, err := inboxUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Log.WithError(err).Warn("Inbox websocket upgrade failed")
		return
	}

	a.Metrics.InboxConnections.Inc()
	a.Hub.Register(userID, conn)
	a.Log.WithField("user_id", userID).Debug("Inbox connection opened")
	defer func() {
		a.Hub.Unregister(userID, conn)
		a.Metrics.InboxConnections.Dec()
		_ = conn.Close()
		a.Log.WithField("user_id", userID).Debug("Inbox connection closed")
	}()

	conn.SetReadLimit(inboxReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(inboxIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(inboxIdleTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.Log.WithError(err).WithField("user_id", userID).Debug("Inbox connection dropped")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(inboxIdleTimeout))
	}
}
