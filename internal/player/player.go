// Package player implements the per-guild audio pipeline (§4.3): a
// Player owns exactly one voice driver and at most one track handle,
// mediates play/pause/stop/seek/volume, and mirrors its live state back
// through the events package.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wavelink/wavelink/internal/codec"
	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/events"
	"github.com/wavelink/wavelink/internal/model"
	"github.com/wavelink/wavelink/internal/source"
)

// ErrUnsupportedSeek is returned by Seek against a track that declared
// itself non-seekable (a live stream).
var ErrUnsupportedSeek = errors.New("player: track is not seekable")

// ErrNoTrack is returned by Seek/Pause-adjacent operations that require
// an active track and don't have one.
var ErrNoTrack = errors.New("player: no track is loaded")

// Player is safe for concurrent use. State is split across two mutexes
// per spec §5: one for the small mutable view (volume/paused/voice/
// filters), one for the optional track handle, matching the two
// independent lock scopes a REST PATCH and a driver callback need.
type Player struct {
	userID  string
	guildID string

	registry *source.Registry
	driver   driver.Driver

	stateMu sync.Mutex
	volume  int
	paused  bool
	voice   model.Voice
	filters model.Filters

	trackMu sync.Mutex
	track   *model.Track
	stream  driverStream

	active atomic.Bool
}

// driverStream is the narrow io.ReadSeekCloser surface Player needs to
// close a superseded stream; kept local to avoid importing io just for
// this field's type spelled out.
type driverStream interface {
	Close() error
}

// New constructs a Player not yet connected to any voice server.
func New(userID, guildID string, registry *source.Registry, drv driver.Driver) *Player {
	return &Player{
		userID:   userID,
		guildID:  guildID,
		registry: registry,
		driver:   drv,
		volume:   100,
	}
}

// Wire registers this Player's event handler with its driver. Callers
// construct the events.Handler themselves so the Sink/Remover wiring
// stays outside this package (§9 non-owning-reference discipline).
func (p *Player) Wire(h *events.Handler) {
	p.driver.RegisterEventHandler(h)
}

func (p *Player) GuildID() string { return p.guildID }

func (p *Player) CurrentTrack() *model.Track {
	p.trackMu.Lock()
	defer p.trackMu.Unlock()
	return p.track
}

func (p *Player) ClearTrack() {
	p.trackMu.Lock()
	defer p.trackMu.Unlock()
	p.track = nil
}

func (p *Player) SetActive(active bool) { p.active.Store(active) }

// Connect performs (or re-performs) the voice handshake. Per §4.2,
// calling this on an already-connected Player reconnects with the new
// credentials rather than erroring, since Discord rotates voice
// endpoints under a live player.
func (p *Player) Connect(ctx context.Context, creds driver.Credentials) error {
	if err := p.driver.Connect(ctx, creds); err != nil {
		return fmt.Errorf("player: connect: %w", err)
	}
	p.stateMu.Lock()
	p.voice = model.Voice{Token: creds.Token, Endpoint: creds.Endpoint, SessionID: creds.SessionID}
	p.stateMu.Unlock()
	return nil
}

// Play decodes the handle, resolves it against the source registry,
// opens a fresh stream, and replaces any currently playing track.
func (p *Player) Play(ctx context.Context, encoded string) error {
	decoded, err := codec.Decode(encoded)
	if err != nil {
		return fmt.Errorf("player: decode track: %w", err)
	}
	info := decoded.TrackInfo

	stream, err := p.registry.MakePlayable(ctx, info)
	if err != nil {
		return fmt.Errorf("player: resolve stream: %w", err)
	}

	p.trackMu.Lock()
	if p.stream != nil {
		p.stream.Close()
	}
	p.stream = stream.Reader
	p.track = &model.Track{Encoded: encoded, Info: info, PluginInfo: map[string]any{}}
	p.trackMu.Unlock()

	if err := p.driver.Play(ctx, stream.Reader); err != nil {
		return fmt.Errorf("player: driver play: %w", err)
	}
	return nil
}

// Stop drops the current track handle; the driver keeps its mix slot.
func (p *Player) Stop() {
	p.driver.Stop()
	p.trackMu.Lock()
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	p.track = nil
	p.trackMu.Unlock()
}

func (p *Player) Pause(paused bool) {
	p.driver.Pause(paused)
	p.stateMu.Lock()
	p.paused = paused
	p.stateMu.Unlock()
}

// Seek instructs the driver; position_ms is updated on the next
// Periodic tick rather than synchronously, matching the driver's own
// reporting cadence.
func (p *Player) Seek(ctx context.Context, positionMS int64) error {
	tr := p.CurrentTrack()
	if tr == nil {
		return ErrNoTrack
	}
	if !tr.Info.IsSeekable {
		return ErrUnsupportedSeek
	}
	if err := p.driver.Seek(ctx, positionMS); err != nil {
		return fmt.Errorf("player: seek: %w", err)
	}
	return nil
}

// SetVolume takes the wire 0..1000 percentage and applies the
// corresponding 0..10 gain to the driver (§4.3).
func (p *Player) SetVolume(percent int) {
	p.driver.SetVolume(float64(percent) / 100.0)
	p.stateMu.Lock()
	p.volume = percent
	p.stateMu.Unlock()
}

// SetFilters stores the filter graph for Snapshot rendering and forwards
// the raw JSON verbatim to the driver, which round-trips it unprocessed
// (no filter DSP is implemented, §9 Open Question (c)).
func (p *Player) SetFilters(f model.Filters, raw []byte) error {
	p.stateMu.Lock()
	p.filters = f
	p.stateMu.Unlock()
	return p.driver.ApplyFilters(raw)
}

// Disconnect stops any track and leaves voice.
func (p *Player) Disconnect() error {
	p.Stop()
	return p.driver.Disconnect()
}

// Snapshot renders the REST-visible Player shape.
func (p *Player) Snapshot() model.Player {
	p.stateMu.Lock()
	volume, paused, voice, filters := p.volume, p.paused, p.voice, p.filters
	p.stateMu.Unlock()

	tr := p.CurrentTrack()

	return model.Player{
		GuildID: p.guildID,
		Track:   tr,
		Volume:  volume,
		Paused:  paused,
		State: model.PlayerState{
			Connected: voice.Connected != nil && *voice.Connected,
		},
		Voice:   voice,
		Filters: filters,
	}
}
