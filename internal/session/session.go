// Package session implements the WebSocket session store (§3 Session,
// §4.1): one authenticated connection per user identity, a resumable
// outbound frame queue, and the per-user Player registry that rides on
// top of it.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wavelink/wavelink/internal/model"
	"github.com/wavelink/wavelink/internal/player"
	"github.com/wavelink/wavelink/internal/queue"
	"github.com/wavelink/wavelink/internal/source"
)

// DefaultResumeTimeout is applied to every new Session; PATCH
// /sessions/{sid} can override it per spec §7.
const DefaultResumeTimeout = 60 * time.Second

// Session is one user's WebSocket binding plus its Player registry. A
// Session outlives any single TCP connection: disconnection starts a
// grace-window timer rather than tearing anything down immediately.
type Session struct {
	UserID string
	ID     string

	Players *player.Manager

	mu            sync.Mutex
	resumeTimeout time.Duration
	resumable     bool
	conn          *websocket.Conn
	connStop      chan struct{}
	graceTimer    *time.Timer
	closed        bool
	onExpire      func()

	outbound *queue.Queue
}

func newSession(userID string, registry *source.Registry, df player.DriverFactory) *Session {
	s := &Session{
		UserID:        userID,
		ID:            uuid.NewString(),
		resumeTimeout: DefaultResumeTimeout,
		outbound:      queue.New(),
	}
	s.Players = player.NewManager(userID, registry, s, df)
	return s
}

// Publish implements events.Sink. Marshal failures are silently dropped;
// every payload type this node ever publishes is a plain struct of
// exported JSON-tagged fields, so a failure here would mean a
// programming error, not a runtime condition callers can act on.
func (s *Session) Publish(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.outbound.Push(data)
}

// publishFirst is Publish but ahead of anything already buffered. The
// registry uses it for the resume Ready frame so a client that presents
// a matching session id always sees Ready{resumed:true} before any
// event that queued up during the disconnect gap (spec scenario 5).
func (s *Session) publishFirst(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.outbound.PushFront(data)
}

// SetResumable toggles whether a disconnect starts the grace-window
// timer at all (PATCH /sessions/{sid}).
func (s *Session) SetResumable(resumable bool) {
	s.mu.Lock()
	s.resumable = resumable
	s.mu.Unlock()
}

func (s *Session) SetResumeTimeout(d time.Duration) {
	s.mu.Lock()
	s.resumeTimeout = d
	s.mu.Unlock()
}

func (s *Session) Info() model.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SessionInfo{Resuming: s.resumable, Timeout: int(s.resumeTimeout / time.Second)}
}

// attach binds a freshly upgraded socket, cancelling any pending
// grace-window teardown and starting fresh read/write pumps. Any pump
// still parked from a previous conn (one that disconnected but never
// finished draining) is retired first, via its own stop channel, so it
// can never win a race against the new pump for the next queued frame —
// including the Ready{resumed:true} frame attach's caller is about to
// publish.
func (s *Session) attach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	if s.connStop != nil {
		close(s.connStop)
	}
	stop := make(chan struct{})
	s.connStop = stop
	s.conn = conn
	s.mu.Unlock()
	s.outbound.Kick()

	go s.writePump(conn, stop)
	go s.readPump(conn)
}

// writePump drains the outbound queue onto conn until either the queue
// closes, a write fails, or stop fires. stop is closed by onDisconnect
// (the socket died) or by a later attach (this pump has been
// superseded); PopStoppable guarantees a pump that lost the race never
// dequeues a frame it won't deliver.
func (s *Session) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		frame, ok := s.outbound.PopStoppable(stop)
		if !ok {
			return
		}
		s.mu.Lock()
		current := s.conn
		s.mu.Unlock()
		if current != conn {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// readPump's only job is to notice the socket died; the control
// protocol is receive-only from the client's perspective, every command
// travels over REST.
func (s *Session) readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.onDisconnect(conn)
}

// onDisconnect retires conn's write pump and arms the grace-window
// timer so a matching reconnect within resumeTimeout can still adopt
// the buffered queue. The window always runs on disconnect, regardless
// of resumable: resumable only controls whether a *resume* is accepted
// (Registry.Upgrade checks withinGrace, not resumable) or whether the
// client is told resuming is enabled in Session.Info — every socket
// still gets one chance to be reclaimed, matching the reference
// server's unconditional post-disconnect grace window.
func (s *Session) onDisconnect(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	stop := s.connStop
	s.connStop = nil
	timeout := s.resumeTimeout
	s.graceTimer = time.AfterFunc(timeout, s.destroy)
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	s.outbound.Kick()
}

// destroy tears the session down for good: players disconnected, the
// cleanup worker stopped, the outbound queue closed, and the owning
// registry notified so a later lookup doesn't find a dead entry.
func (s *Session) destroy() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	conn := s.conn
	s.conn = nil
	onExpire := s.onExpire
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.Players.DisconnectAll()
	s.Players.Shutdown()
	s.outbound.Close()

	if onExpire != nil {
		onExpire()
	}
}

// withinGrace reports whether this session is currently disconnected
// but still inside its resume window.
func (s *Session) withinGrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graceTimer != nil
}
