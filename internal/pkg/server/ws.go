package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/view"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams the derived view to the panel. Every merge cycle that
// changes the store produces one frame; a slow client only ever sees the
// newest state because the store subscription drops stale notifications.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	sid := localSession
	if s.cfg.PasswordHash != "" {
		var err error
		sid, err = s.sessionFromToken(bearerToken(r))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := s.store.Subscribe()
	defer cancel()

	// discard inbound frames; the socket is push-only
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sess := s.session(sid)
	writeFrame := func() error {
		s.mu.Lock()
		dismissed := sess.bannerDismissed
		s.mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(view.Compute(s.store.Current(), dismissed))
	}

	if err := writeFrame(); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-done:
			return
		case <-ch:
			if err := writeFrame(); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
