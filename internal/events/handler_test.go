package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/model"
)

type fakeState struct {
	guildID string
	track   *model.Track
	active  bool
}

func (s *fakeState) GuildID() string             { return s.guildID }
func (s *fakeState) CurrentTrack() *model.Track   { return s.track }
func (s *fakeState) ClearTrack()                  { s.track = nil }
func (s *fakeState) SetActive(active bool)        { s.active = active }

type fakeSink struct {
	published []any
}

func (s *fakeSink) Publish(payload any) { s.published = append(s.published, payload) }

type fakeRemover struct {
	removed []string
}

func (r *fakeRemover) RequestRemoval(guildID string) { r.removed = append(r.removed, guildID) }

func TestOnTrackPlayableSetsActiveAndEmitsStart(t *testing.T) {
	state := &fakeState{guildID: "g1", track: &model.Track{Encoded: "x"}}
	sink := &fakeSink{}
	h := New(state, sink, &fakeRemover{})

	h.OnTrackPlayable()

	require.True(t, state.active)
	require.Len(t, sink.published, 1)
	ev, ok := sink.published[0].(model.TrackStartEvent)
	require.True(t, ok)
	require.Equal(t, "g1", ev.GuildID)
	require.Equal(t, model.EventTrackStart, ev.Type)
}

func TestOnTrackPlayableWithNoTrackEmitsNothing(t *testing.T) {
	state := &fakeState{guildID: "g1"}
	sink := &fakeSink{}
	h := New(state, sink, &fakeRemover{})

	h.OnTrackPlayable()

	require.True(t, state.active)
	require.Empty(t, sink.published)
}

func TestOnTrackEndClearsTrackAndEmitsEnd(t *testing.T) {
	state := &fakeState{guildID: "g1", track: &model.Track{Encoded: "x"}, active: true}
	sink := &fakeSink{}
	h := New(state, sink, &fakeRemover{})

	h.OnTrackEnd()

	require.False(t, state.active)
	require.Nil(t, state.track)
	require.Len(t, sink.published, 1)
	ev := sink.published[0].(model.TrackEndEvent)
	require.Equal(t, string(model.EndReasonFinished), ev.Reason)
}

func TestOnTrackErrorEmitsExceptionWithMessage(t *testing.T) {
	state := &fakeState{guildID: "g1", track: &model.Track{Encoded: "x"}}
	sink := &fakeSink{}
	h := New(state, sink, &fakeRemover{})

	h.OnTrackError(errors.New("boom"))

	ev := sink.published[0].(model.TrackExceptionEvent)
	require.Equal(t, "boom", ev.Exception.Message)
	require.Equal(t, model.SeverityCommon, ev.Exception.Severity)
}

func TestOnDriverDisconnectEmitsMappedCodeAndRequestsRemoval(t *testing.T) {
	state := &fakeState{guildID: "g1", active: true}
	sink := &fakeSink{}
	remover := &fakeRemover{}
	h := New(state, sink, remover)

	h.OnDriverDisconnect(driver.CloseDisconnected, false)

	require.False(t, state.active)
	ev := sink.published[0].(model.WebSocketClosedEvent)
	require.Equal(t, 4013, ev.Code)
	require.True(t, ev.ByRemote)
	require.Equal(t, []string{"g1"}, remover.removed)
}

func TestOnDriverDisconnectGracefulIsNotByRemote(t *testing.T) {
	state := &fakeState{guildID: "g1"}
	sink := &fakeSink{}
	h := New(state, sink, &fakeRemover{})

	h.OnDriverDisconnect(driver.CloseDisconnected, true)

	ev := sink.published[0].(model.WebSocketClosedEvent)
	require.Equal(t, 1000, ev.Code)
	require.False(t, ev.ByRemote)
}

func TestOnPeriodicEmitsPlayerUpdate(t *testing.T) {
	state := &fakeState{guildID: "g1"}
	sink := &fakeSink{}
	h := New(state, sink, &fakeRemover{})

	h.OnPeriodic(4200, true, 12)

	ev := sink.published[0].(model.PlayerUpdate)
	require.Equal(t, "g1", ev.GuildID)
	require.Equal(t, int64(4200), ev.State.Position)
	require.True(t, ev.State.Connected)
	require.Equal(t, 12, ev.State.Ping)
}
