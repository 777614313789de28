// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SoftbearStudios/mk48arena/internal/arena"
)

// Connection bookkeeping constants, grounded verbatim on server/
// socket_client.go's own timing (this game's clients already expect this
// cadence; changing it would require a matching client-side change this
// module has no say over).
const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16 // ~1.5s of messages at the tick rate before a slow client trips close
)

var upgrader = websocket.Upgrader{
	// Grounded on socket_client.go's upgrader: origin checking is left to
	// the deploying reverse proxy/CDN in this module, same TODO the
	// teacher left unresolved.
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsSender is the production arena.Sender: one registered websocket
// connection's write side. Grounded on server/socket_client.go's
// SocketClient, trimmed of the teacher's ClientData embedding (this
// module's arena.Client already owns that bookkeeping; wsSender only ever
// needs to move bytes).
type wsSender struct {
	conn *websocket.Conn
	send chan arena.Outbound
	once sync.Once
	done chan struct{}
	log  *zap.SugaredLogger

	onClose func()
}

func newWSSender(conn *websocket.Conn, log *zap.SugaredLogger, onClose func()) *wsSender {
	return &wsSender{conn: conn, send: make(chan arena.Outbound, sendBuffer), done: make(chan struct{}), log: log, onClose: onClose}
}

// Send enqueues msg for delivery, dropping the connection if the client is
// too slow to keep its buffer drained. Grounded on SocketClient.Send's
// non-blocking select-default-Destroy pattern.
func (s *wsSender) Send(msg arena.Outbound) {
	select {
	case s.send <- msg:
	default:
		s.close()
	}
}

func (s *wsSender) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// writePump drains send, encoding each message through its wire envelope,
// and pings on pingPeriod. Grounded on socket_client.go's writePump.
func (s *wsSender) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			k, found := outboundKind(msg)
			if !found {
				k = kindGame
			}
			body, err := encodeOutbound(k, msg)
			if err != nil {
				s.log.Errorw("encode outbound", "error", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump decodes each inbound envelope and hands it to onMessage until
// the connection closes. Grounded on socket_client.go's readPump.
func (s *wsSender) readPump(onMessage func(envelope) bool) {
	defer s.close()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, r, err := s.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debugw("websocket close", "error", err)
			}
			return
		}

		var env envelope
		if err := wireCodec.NewDecoder(r).Decode(&env); err != nil {
			s.log.Debugw("malformed inbound envelope", "error", err)
			inboundErrorsTotal.Inc()
			return
		}
		if !onMessage(env) {
			return
		}
	}
}

// clientIP extracts the peer's address for rate limiting and bookkeeping,
// preferring X-Forwarded-For the way a deploy behind a load balancer
// requires. Grounded on server/http.go's ServeSocket.
func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		if ip := net.ParseIP(strings.TrimSpace(fwd)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
