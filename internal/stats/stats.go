// Package stats periodically broadcasts node-wide Stats frames (§2
// "Stats & Housekeeping") to every live session, mirroring the shape the
// teacher's node.go decodes on the receiving side (StatsReceivedEvent)
// from the sending side this node plays.
package stats

import (
	"runtime"
	"sync"
	"time"

	"github.com/wavelink/wavelink/internal/model"
	"github.com/wavelink/wavelink/internal/session"
)

// Broadcaster ticks on a configurable interval, gathers player counts
// across every session, and publishes a Stats frame to each of them.
type Broadcaster struct {
	registry *session.Registry
	interval time.Duration
	start    time.Time

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
}

func NewBroadcaster(registry *session.Registry, interval time.Duration, start time.Time) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		interval: interval,
		start:    start,
	}
}

// Start launches the broadcast loop in the background. Calling it twice
// without an intervening Stop is a no-op.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ticker != nil {
		return
	}
	b.ticker = time.NewTicker(b.interval)
	b.stop = make(chan struct{})
	go b.run(b.ticker, b.stop)
}

func (b *Broadcaster) run(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			b.broadcastOnce()
		case <-stop:
			return
		}
	}
}

// Stop halts the broadcast loop; it is safe to call even if Start was
// never called.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ticker == nil {
		return
	}
	b.ticker.Stop()
	close(b.stop)
	b.ticker = nil
	b.stop = nil
}

func (b *Broadcaster) broadcastOnce() {
	s := b.Snapshot()
	b.registry.ForEach(func(sess *session.Session) {
		sess.Publish(s)
	})
}

// Snapshot gathers the current Stats frame without publishing it, used
// directly by tests and by broadcastOnce.
func (b *Broadcaster) Snapshot() model.Stats {
	var players, playing int
	b.registry.ForEach(func(sess *session.Session) {
		players += sess.Players.Len()
		playing += sess.Players.PlayingLen()
	})

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return model.Stats{
		Op:             model.OpStats,
		Players:        players,
		PlayingPlayers: playing,
		Uptime:         int64(time.Since(b.start) / time.Millisecond),
		Memory: model.Memory{
			Free:       mem.Sys - mem.HeapInuse,
			Used:       mem.HeapInuse,
			Allocated:  mem.HeapAlloc,
			Reservable: mem.Sys,
		},
		Cpu: model.Cpu{
			Cores:        runtime.NumCPU(),
			SystemLoad:   0,
			LavalinkLoad: 0,
		},
	}
}
