// Package ws serves the gate protocol to scanning terminals over websockets.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cimillas/panache/services/api/internal/gate"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
	handleTimeout  = 5 * time.Second
)

type Server struct {
	gate      *gate.Service
	hub       *gate.Hub
	admission *Admission
	upgrader  websocket.Upgrader
	logger    logrus.FieldLogger
}

// NewServer builds the websocket endpoint. An empty origins list or "*"
// accepts any origin; terminals without an Origin header are always accepted.
func NewServer(svc *gate.Service, hub *gate.Hub, admission *Admission, origins []string, logger logrus.FieldLogger) *Server {
	s := &Server{
		gate:      svc,
		hub:       hub,
		admission: admission,
		logger:    logger.WithField("object", "ws"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return s
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o == "*" {
			return func(*http.Request) bool { return true }
		} else if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr := ClientAddr(r)
	release, err := s.admission.Admit(addr)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"addr": addr, "reason": err.Error()}).Warn("connection refused")
		code := "too_many_connections"
		if errors.Is(err, ErrCoolingDown) {
			code = "cooling_down"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": code})
		return
	}
	defer release()

	wc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).WithField("addr", addr).Warn("websocket upgrade failed")
		return
	}

	c := &conn{
		id:   uuid.NewString(),
		wc:   wc,
		send: make(chan gate.Message, sendBuffer),
		done: make(chan struct{}),
	}
	log := s.logger.WithFields(logrus.Fields{"conn": c.id, "addr": addr})
	log.Debug("terminal connected")

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		s.write(c, log)
	}()

	// Registered before the status is sent, so a SYSTEM_READY broadcast can
	// only arrive after it.
	s.hub.Register(c)
	c.Deliver(gate.StatusMessage(s.gate.Ready()))

	err = s.read(c)
	s.hub.Unregister(c)
	c.close()
	writer.Wait()

	if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.WithError(err).Warn("terminal connection lost")
		return
	}
	log.Debug("terminal disconnected")
}

// read handles frames one at a time, so a terminal sees replies in the order
// it sent requests.
func (s *Server) read(c *conn) error {
	c.wc.SetReadLimit(maxMessageSize)
	_ = c.wc.SetReadDeadline(time.Now().Add(pongWait))
	c.wc.SetPongHandler(func(string) error {
		return c.wc.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		op, data, err := c.wc.ReadMessage()
		if err != nil {
			return err
		}
		if op != websocket.TextMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		res := s.gate.Handle(ctx, data)
		cancel()

		if !c.Deliver(res.Reply) {
			s.logger.WithField("conn", c.id).Warn("reply dropped for slow terminal")
		}
		if res.Broadcast != nil {
			s.hub.Broadcast(*res.Broadcast)
		}
	}
}

func (s *Server) write(c *conn, log logrus.FieldLogger) {
	t := time.NewTicker(pingPeriod)
	defer func() {
		t.Stop()
		_ = c.wc.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.wc.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("write failed")
				return
			}
		case <-t.C:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.wc.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// conn is one terminal. send is never closed; done signals shutdown so hub
// broadcasts racing a disconnect are simply dropped.
type conn struct {
	id        string
	wc        *websocket.Conn
	send      chan gate.Message
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) ID() string { return c.id }

func (c *conn) Deliver(msg gate.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
