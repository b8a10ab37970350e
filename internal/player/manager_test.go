package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/source"
)

type fakeManagerSink struct {
	published []any
}

func (s *fakeManagerSink) Publish(payload any) { s.published = append(s.published, payload) }

func newTestManager(t *testing.T) (*Manager, map[string]*fakeDriver) {
	t.Helper()
	built := make(map[string]*fakeDriver)
	reg := source.NewRegistry()
	sink := &fakeManagerSink{}
	df := func(guildID string) driver.Driver {
		d := &fakeDriver{}
		built[guildID] = d
		return d
	}
	m := NewManager("bot-user", reg, sink, df)
	return m, built
}

func TestCreateOrConnectAllocatesOncePerGuild(t *testing.T) {
	m, built := newTestManager(t)
	defer m.Shutdown()

	p1, err := m.CreateOrConnect(context.Background(), "g1", driver.Credentials{Token: "a"})
	require.NoError(t, err)
	p2, err := m.CreateOrConnect(context.Background(), "g1", driver.Credentials{Token: "b"})
	require.NoError(t, err)

	require.Same(t, p1, p2)
	require.Len(t, built["g1"].connectArgs, 2)
	require.Equal(t, 1, m.Len())
}

func TestCreateOrConnectPropagatesInitialConnectError(t *testing.T) {
	reg := source.NewRegistry()
	sink := &fakeManagerSink{}
	var failing *fakeDriver
	df := func(guildID string) driver.Driver {
		failing = &fakeDriver{connectErr: context.DeadlineExceeded}
		return failing
	}
	m := NewManager("bot-user", reg, sink, df)
	defer m.Shutdown()

	p, err := m.CreateOrConnect(context.Background(), "g1", driver.Credentials{})
	require.Error(t, err)
	require.Nil(t, p)
	_, ok := m.Get("g1")
	require.False(t, ok, "a player that failed its initial connect must not be registered")
}

func TestGetReturnsFalseForUnknownGuild(t *testing.T) {
	m, _ := newTestManager(t)
	defer m.Shutdown()

	_, ok := m.Get("missing")
	require.False(t, ok)
}

func TestDisconnectRemovesFromRegistry(t *testing.T) {
	m, built := newTestManager(t)
	defer m.Shutdown()

	_, err := m.CreateOrConnect(context.Background(), "g1", driver.Credentials{})
	require.NoError(t, err)

	m.Disconnect("g1")

	_, ok := m.Get("g1")
	require.False(t, ok)
	require.Equal(t, 1, built["g1"].disconnects)
}

func TestDisconnectAllClearsEveryGuild(t *testing.T) {
	m, _ := newTestManager(t)
	defer m.Shutdown()

	_, err := m.CreateOrConnect(context.Background(), "g1", driver.Credentials{})
	require.NoError(t, err)
	_, err = m.CreateOrConnect(context.Background(), "g2", driver.Credentials{})
	require.NoError(t, err)

	m.DisconnectAll()

	require.Equal(t, 0, m.Len())
}

func TestRequestRemovalDrainsThroughCleanupWorker(t *testing.T) {
	m, _ := newTestManager(t)
	defer m.Shutdown()

	_, err := m.CreateOrConnect(context.Background(), "g1", driver.Credentials{})
	require.NoError(t, err)

	m.RequestRemoval("g1")

	require.Eventually(t, func() bool {
		_, ok := m.Get("g1")
		return !ok
	}, time.Second, time.Millisecond)
}

func TestShutdownStopsCleanupWorker(t *testing.T) {
	m, _ := newTestManager(t)
	m.Shutdown()
}
