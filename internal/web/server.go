// Package web hosts negotiation overlays over websockets, one session per connection.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"haggle-go/internal/engagement"
	"haggle-go/internal/loop"
	"haggle-go/internal/metrics"
	"haggle-go/internal/negotiation"
	"haggle-go/internal/overlay"
)

const (
	readLimit    = 4 << 10
	pongWait     = 30 * time.Second
	pingInterval = 15 * time.Second
	outboxSize   = 32
)

// Message is a server to client frame.
type Message struct {
	Type    string                `json:"type"`
	Session *negotiation.Snapshot `json:"session,omitempty"`
	Reason  engagement.Reason     `json:"reason,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Message types.
const (
	MsgSnapshot = "snapshot"
	MsgReveal   = "reveal"
	MsgError    = "error"
)

// Options configures a Server.
type Options struct {
	// Overlay is the template for every session. Its session ID is ignored.
	Overlay      overlay.Config
	Notifier     negotiation.Notifier
	WriteTimeout time.Duration
	PingInterval time.Duration
	// AllowedOrigins restricts the websocket handshake. Empty accepts any origin.
	AllowedOrigins []string
}

// Server upgrades connections and runs an overlay session for each.
type Server struct {
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader
	wg       sync.WaitGroup
}

// NewServer builds a host.
func NewServer(opts Options, log zerolog.Logger) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = pingInterval
	}
	s := &Server{opts: opts, log: log}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP routes of the host.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Wait blocks until every session has been disposed.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.opts.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	sess := &session{srv: s, conn: conn, out: make(chan Message, outboxSize)}
	if err := sess.run(r.Context()); err != nil {
		s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket session closed")
	}
}

// session is one connection. The reader posts commands onto the loop, the loop pushes
// frames to out and the writer drains out onto the socket.
type session struct {
	srv  *Server
	conn *websocket.Conn
	out  chan Message
	ov   *overlay.Overlay
	log  zerolog.Logger
}

func (c *session) run(parent context.Context) error {
	defer c.conn.Close()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	l := loop.New(0)
	go func() { _ = l.Run(ctx) }()

	var opts []negotiation.Option
	if c.srv.opts.Notifier != nil {
		opts = append(opts, negotiation.WithNotifier(c.srv.opts.Notifier))
	}
	cfg := c.srv.opts.Overlay
	cfg.Session.SessionID = ""
	ov, err := overlay.New(ctx, cfg, l, c.srv.log, opts...)
	if err != nil {
		c.writeNow(Message{Type: MsgError, Error: err.Error()})
		return err
	}
	c.ov = ov
	c.log = c.srv.log.With().Str("session", ov.SessionID()).Logger()

	if err := l.Do(ctx, func() {
		ov.Machine().Subscribe(func(snap negotiation.Snapshot) { c.push(snapshotMessage(snap)) })
		ov.OnReveal(func(rv engagement.Reveal) { c.push(Message{Type: MsgReveal, Reason: rv.Reason}) })
		c.push(snapshotMessage(ov.Machine().Snapshot()))
		ov.Start()
	}); err != nil {
		return err
	}
	c.log.Info().Msg("overlay session opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	err = c.readLoop(ctx, l)

	// dispose on the loop so no callback races the teardown
	_ = l.Do(context.Background(), ov.Close)
	cancel()
	<-writerDone
	c.log.Info().Str("state", string(ov.Machine().State())).Msg("overlay session closed")
	return err
}

func (c *session) readLoop(ctx context.Context, l *loop.Loop) error {
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		var cmd overlay.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.push(Message{Type: MsgError, Error: fmt.Sprintf("decode command: %v", err)})
			continue
		}
		if !l.Post(func() { c.apply(cmd) }) {
			return ctx.Err()
		}
	}
}

func (c *session) apply(cmd overlay.Command) {
	changed, err := c.ov.Apply(cmd)
	if err != nil {
		c.log.Warn().Err(err).Msg("rejected command")
		c.push(Message{Type: MsgError, Error: err.Error()})
		return
	}
	c.log.Debug().Str("cmd", cmd.Type).Bool("changed", changed).Msg("command applied")
}

// push never blocks the loop. A client too slow to drain its outbox misses frames;
// the next snapshot supersedes them.
func (c *session) push(msg Message) {
	select {
	case c.out <- msg:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("outbox full, dropping frame")
	}
}

func (c *session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(c.srv.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			// unblocks the reader when the host shuts down first
			_ = c.conn.Close()
			return
		case msg := <-c.out:
			if err := c.writeNow(msg); err != nil {
				c.log.Warn().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn().Err(err).Msg("websocket ping failed")
				return
			}
		}
	}
}

func (c *session) writeNow(msg Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
	return c.conn.WriteJSON(msg)
}

func snapshotMessage(snap negotiation.Snapshot) Message {
	return Message{Type: MsgSnapshot, Session: &snap}
}
