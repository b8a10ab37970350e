package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/source"
)

// fakeDriverForSession is a no-op driver.Driver; these tests exercise
// session/registry plumbing, not the voice driver itself.
type fakeDriverForSession struct{}

func newFakeDriverForSession() *fakeDriverForSession { return &fakeDriverForSession{} }

func (*fakeDriverForSession) Connect(ctx context.Context, creds driver.Credentials) error { return nil }
func (*fakeDriverForSession) ApplyFilters(raw []byte) error                               { return nil }
func (*fakeDriverForSession) Play(ctx context.Context, stream io.ReadSeekCloser) error     { return nil }
func (*fakeDriverForSession) Stop()                                                       {}
func (*fakeDriverForSession) Pause(paused bool)                                            {}
func (*fakeDriverForSession) Seek(ctx context.Context, positionMS int64) error             { return nil }
func (*fakeDriverForSession) SetVolume(volume float64)                                     {}
func (*fakeDriverForSession) Disconnect() error                                            { return nil }
func (*fakeDriverForSession) RegisterEventHandler(h driver.EventHandler)                   {}

// wsPair spins up a real httptest server that upgrades every request
// and hands the accepted server-side conn to onAccept; it returns the
// dialed client conn and a teardown func.
func wsPair(t *testing.T, onAccept func(*websocket.Conn)) (*websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		onAccept(conn)
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return client, func() {
		client.Close()
		srv.Close()
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(source.NewRegistry(), func(guildID string) driver.Driver { return newFakeDriverForSession() })
}

func TestUpgradeFreshSessionEmitsReadyNotResumed(t *testing.T) {
	r := newTestRegistry()

	client, teardown := wsPair(t, func(conn *websocket.Conn) {
		r.Upgrade("user-1", "", conn)
	})
	defer teardown()

	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"resumed":false`)
}

func TestUpgradeResumeWithMatchingSessionID(t *testing.T) {
	r := newTestRegistry()

	var sessID string
	client1, teardown1 := wsPair(t, func(conn *websocket.Conn) {
		s, _ := r.Upgrade("user-1", "", conn)
		sessID = s.ID
	})
	_, _, err := client1.ReadMessage()
	require.NoError(t, err)
	client1.Close()
	teardown1()

	time.Sleep(20 * time.Millisecond)

	client2, teardown2 := wsPair(t, func(conn *websocket.Conn) {
		r.Upgrade("user-1", sessID, conn)
	})
	defer teardown2()

	_, data, err := client2.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"resumed":true`)
	require.Contains(t, string(data), sessID)
}

func TestUpgradeReplacesOnMismatchedSessionID(t *testing.T) {
	r := newTestRegistry()

	var firstID string
	client1, teardown1 := wsPair(t, func(conn *websocket.Conn) {
		s, _ := r.Upgrade("user-1", "", conn)
		firstID = s.ID
	})
	_, _, err := client1.ReadMessage()
	require.NoError(t, err)
	teardown1()

	client2, teardown2 := wsPair(t, func(conn *websocket.Conn) {
		r.Upgrade("user-1", "not-the-right-id", conn)
	})
	defer teardown2()

	_, data, err := client2.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"resumed":false`)
	require.NotContains(t, string(data), firstID)

	s, ok := r.Get("user-1")
	require.True(t, ok)
	require.NotEqual(t, firstID, s.ID)
}

// TestResumeDeliversGapFramesInOrder exercises spec scenario 5: a frame
// published while the session is disconnected-but-in-grace must reach
// the resumed socket, in order, right after Ready{resumed:true} — and
// the old connection's write pump (parked in Pop when the socket died)
// must never win the race and swallow it.
func TestResumeDeliversGapFramesInOrder(t *testing.T) {
	r := newTestRegistry()

	var sess *Session
	client1, teardown1 := wsPair(t, func(conn *websocket.Conn) {
		s, _ := r.Upgrade("user-1", "", conn)
		sess = s
	})
	_, _, err := client1.ReadMessage()
	require.NoError(t, err)
	client1.Close()
	teardown1()

	require.Eventually(t, func() bool { return sess.withinGrace() }, time.Second, 5*time.Millisecond)

	sess.Publish(map[string]string{"op": "stats", "marker": "gap-frame"})

	client2, teardown2 := wsPair(t, func(conn *websocket.Conn) {
		r.Upgrade("user-1", sess.ID, conn)
	})
	defer teardown2()

	_, readyFrame, err := client2.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(readyFrame), `"resumed":true`)

	_, gapFrame, err := client2.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(gapFrame), "gap-frame")
}

func TestGetBySessionIDFindsActiveSession(t *testing.T) {
	r := newTestRegistry()

	client, teardown := wsPair(t, func(conn *websocket.Conn) {
		r.Upgrade("user-1", "", conn)
	})
	defer teardown()
	_, _, err := client.ReadMessage()
	require.NoError(t, err)

	s, ok := r.Get("user-1")
	require.True(t, ok)

	found, ok := r.GetBySessionID(s.ID)
	require.True(t, ok)
	require.Same(t, s, found)
}
