package session

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wavelink/wavelink/internal/model"
	"github.com/wavelink/wavelink/internal/player"
	"github.com/wavelink/wavelink/internal/source"
)

// Registry holds exactly one Session per user id (§3 Session). It is
// the upgrade/lookup surface the WebSocket handler and the REST layer
// both drive.
type Registry struct {
	registry      *source.Registry
	driverFactory player.DriverFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(registry *source.Registry, df player.DriverFactory) *Registry {
	return &Registry{
		registry:      registry,
		driverFactory: df,
		sessions:      make(map[string]*Session),
	}
}

// Upgrade implements §4.1's contract: adopt a matching, still-gracious
// session; otherwise replace (destroying the old session's players) or
// create fresh. The Ready frame is always the first thing pushed onto
// the returned session's outbound queue.
func (r *Registry) Upgrade(userID, presentedSessionID string, conn *websocket.Conn) (*Session, bool) {
	r.mu.Lock()
	existing, ok := r.sessions[userID]
	r.mu.Unlock()

	if ok {
		matches := presentedSessionID != "" && presentedSessionID == existing.ID
		if matches && existing.withinGrace() {
			existing.attach(conn)
			existing.publishFirst(model.Ready{Op: model.OpReady, Resumed: true, SessionID: existing.ID})
			return existing, true
		}

		r.mu.Lock()
		if r.sessions[userID] == existing {
			delete(r.sessions, userID)
		}
		r.mu.Unlock()
		existing.destroy()
	}

	fresh := newSession(userID, r.registry, r.driverFactory)
	fresh.onExpire = func() { r.forget(userID, fresh.ID) }

	r.mu.Lock()
	r.sessions[userID] = fresh
	r.mu.Unlock()

	fresh.attach(conn)
	fresh.Publish(model.Ready{Op: model.OpReady, Resumed: false, SessionID: fresh.ID})
	return fresh, false
}

func (r *Registry) forget(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok && s.ID == sessionID {
		delete(r.sessions, userID)
	}
}

func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *Registry) GetBySessionID(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == sessionID {
			return s, true
		}
	}
	return nil, false
}

// ForEach visits a point-in-time snapshot of every live session, used
// by the stats broadcaster.
func (r *Registry) ForEach(fn func(*Session)) {
	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}
