// Package events adapts driver.EventHandler callbacks into outbound
// control-protocol event frames. It holds only a narrow view onto a
// Player's state — never the Player itself — so a Handler outliving a
// destroyed Player becomes inert rather than keeping it alive.
package events

import (
	"time"

	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/model"
)

// TrackState is the slice of Player state a Handler needs to render
// events. Player implements it directly.
type TrackState interface {
	GuildID() string
	CurrentTrack() *model.Track
	ClearTrack()
	SetActive(bool)
}

// Sink delivers a JSON-able payload to the owning session's outbound
// queue. It never blocks the caller (internal/queue.Push never blocks).
type Sink interface {
	Publish(payload any)
}

// Remover requests a player's own removal from its manager. It is a
// non-owning reference: if the manager (and the registry entry) is
// already gone, the call is a silent no-op.
type Remover interface {
	RequestRemoval(guildID string)
}

// Handler implements driver.EventHandler for exactly one Player.
type Handler struct {
	state   TrackState
	sink    Sink
	remover Remover
}

func New(state TrackState, sink Sink, remover Remover) *Handler {
	return &Handler{state: state, sink: sink, remover: remover}
}

var _ driver.EventHandler = (*Handler)(nil)

func (h *Handler) OnDriverDisconnect(code driver.CloseCode, graceful bool) {
	h.state.SetActive(false)
	wireCode, reason := driver.MapCloseCode(code, graceful)
	h.sink.Publish(model.WebSocketClosedEvent{
		Op:       model.OpEvent,
		Type:     model.EventWebSocketClosed,
		GuildID:  h.state.GuildID(),
		Code:     wireCode,
		Reason:   reason,
		ByRemote: wireCode != 1000,
	})
	h.remover.RequestRemoval(h.state.GuildID())
}

func (h *Handler) OnPeriodic(positionMS int64, connected bool, pingMS int) {
	h.sink.Publish(model.PlayerUpdate{
		Op:      model.OpPlayerUpdate,
		GuildID: h.state.GuildID(),
		State: model.PlayerState{
			Time:      time.Now().UnixMilli(),
			Position:  positionMS,
			Connected: connected,
			Ping:      pingMS,
		},
	})
}

func (h *Handler) OnTrackPlayable() {
	h.state.SetActive(true)
	tr := h.state.CurrentTrack()
	if tr == nil {
		return
	}
	h.sink.Publish(model.TrackStartEvent{
		Op:      model.OpEvent,
		Type:    model.EventTrackStart,
		GuildID: h.state.GuildID(),
		Track:   *tr,
	})
}

func (h *Handler) OnTrackEnd() {
	h.state.SetActive(false)
	tr := h.state.CurrentTrack()
	h.state.ClearTrack()
	if tr == nil {
		return
	}
	h.sink.Publish(model.TrackEndEvent{
		Op:      model.OpEvent,
		Type:    model.EventTrackEnd,
		GuildID: h.state.GuildID(),
		Track:   *tr,
		Reason:  string(model.EndReasonFinished),
	})
}

func (h *Handler) OnTrackError(err error) {
	h.state.SetActive(false)
	tr := h.state.CurrentTrack()
	h.state.ClearTrack()
	if tr == nil {
		return
	}
	message := ""
	if err != nil {
		message = err.Error()
	}
	h.sink.Publish(model.TrackExceptionEvent{
		Op:      model.OpEvent,
		Type:    model.EventTrackException,
		GuildID: h.state.GuildID(),
		Track:   *tr,
		Exception: model.Exception{
			Message:  message,
			Severity: model.SeverityCommon,
			Cause:    "driver reported a track error",
		},
	})
}
