package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/events"
	"github.com/wavelink/wavelink/internal/source"
)

// DriverFactory builds a fresh, unconnected Driver for one guild. The
// manager never constructs a concrete driver type itself so tests can
// swap in a fake.
type DriverFactory func(guildID string) driver.Driver

type cleanupKind int

const (
	cleanupRemove cleanupKind = iota
	cleanupDestroy
)

type cleanupMsg struct {
	kind    cleanupKind
	guildID string
}

// Manager is the per-user registry of per-guild Players (§4.2). Guild
// lookups are lock-free via sync.Map; a single worker drains the
// private cleanup channel a Player uses to request its own removal on
// driver disconnect, so a Player never touches the registry directly.
type Manager struct {
	userID        string
	registry      *source.Registry
	sink          events.Sink
	driverFactory DriverFactory

	players sync.Map // guildID -> *Player

	cleanup chan cleanupMsg
	done    chan struct{}
}

func NewManager(userID string, registry *source.Registry, sink events.Sink, df DriverFactory) *Manager {
	m := &Manager{
		userID:        userID,
		registry:      registry,
		sink:          sink,
		driverFactory: df,
		cleanup:       make(chan cleanupMsg, 64),
		done:          make(chan struct{}),
	}
	go m.cleanupWorker()
	return m
}

func (m *Manager) cleanupWorker() {
	for msg := range m.cleanup {
		switch msg.kind {
		case cleanupRemove:
			m.players.Delete(msg.guildID)
		case cleanupDestroy:
			close(m.done)
			return
		}
	}
}

// RequestRemoval implements events.Remover. It never blocks: the
// channel is generously buffered, and a full buffer only happens under
// a pathological burst of simultaneous disconnects, in which case the
// message is dropped — the guild's Player is already inert, so the
// worst case is a stale registry entry a later Get will still find
// disconnected.
func (m *Manager) RequestRemoval(guildID string) {
	select {
	case m.cleanup <- cleanupMsg{kind: cleanupRemove, guildID: guildID}:
	default:
	}
}

func (m *Manager) Get(guildID string) (*Player, bool) {
	v, ok := m.players.Load(guildID)
	if !ok {
		return nil, false
	}
	return v.(*Player), true
}

// CreateOrConnect is idempotent (§4.2): an existing Player reconnects
// with the fresh credentials; otherwise one is allocated and performs
// the initial handshake.
func (m *Manager) CreateOrConnect(ctx context.Context, guildID string, creds driver.Credentials) (*Player, error) {
	if p, ok := m.Get(guildID); ok {
		if err := p.Connect(ctx, creds); err != nil {
			return nil, err
		}
		return p, nil
	}

	drv := m.driverFactory(guildID)
	p := New(m.userID, guildID, m.registry, drv)
	handler := events.New(p, m.sink, m)

	if err := p.Connect(ctx, creds); err != nil {
		return nil, fmt.Errorf("player manager: initial connect for guild %s: %w", guildID, err)
	}
	p.Wire(handler)

	m.players.Store(guildID, p)
	return p, nil
}

// Disconnect tears down and forgets one guild's Player.
func (m *Manager) Disconnect(guildID string) {
	v, ok := m.players.LoadAndDelete(guildID)
	if !ok {
		return
	}
	v.(*Player).Disconnect()
}

// DisconnectAll is synchronous and best-effort; called on session
// destruction.
func (m *Manager) DisconnectAll() {
	m.players.Range(func(key, value any) bool {
		value.(*Player).Disconnect()
		m.players.Delete(key)
		return true
	})
}

// Len reports the number of live players, for the stats broadcast.
func (m *Manager) Len() int {
	n := 0
	m.players.Range(func(_, _ any) bool { n++; return true })
	return n
}

// PlayingLen reports players with an active (playable) track.
func (m *Manager) PlayingLen() int {
	n := 0
	m.players.Range(func(_, v any) bool {
		if v.(*Player).active.Load() {
			n++
		}
		return true
	})
	return n
}

// Shutdown stops the cleanup worker. Safe to call once per Manager.
func (m *Manager) Shutdown() {
	m.cleanup <- cleanupMsg{kind: cleanupDestroy}
	<-m.done
}
