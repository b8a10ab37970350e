package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q := New()
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	q.Push([]byte("c"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, string(got))
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	done := make(chan []byte, 1)
	go func() {
		v, ok := q.Pop()
		if ok {
			done <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push([]byte("later"))

	select {
	case v := <-done:
		require.Equal(t, "later", string(v))
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestCloseUnblocksConsumer(t *testing.T) {
	q := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
}

func TestPopStoppableReturnsOnStopWithoutConsuming(t *testing.T) {
	q := New()
	stop := make(chan struct{})
	done := make(chan bool, 1)
	go func() {
		_, ok := q.PopStoppable(stop)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)
	q.Kick()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("PopStoppable did not unblock after stop")
	}

	q.Push([]byte("survivor"))
	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "survivor", string(v))
}

func TestPopStoppableStillDeliversBeforeStop(t *testing.T) {
	q := New()
	stop := make(chan struct{})
	q.Push([]byte("a"))

	v, ok := q.PopStoppable(stop)
	require.True(t, ok)
	require.Equal(t, "a", string(v))
}

func TestPushFrontPrecedesAlreadyQueuedFrames(t *testing.T) {
	q := New()
	q.Push([]byte("buffered-during-gap"))
	q.PushFront([]byte("ready"))

	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "ready", string(v))

	v, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, "buffered-during-gap", string(v))
}

func TestPushAfterCloseIsDropped(t *testing.T) {
	q := New()
	q.Close()
	q.Push([]byte("dropped"))
	_, ok := q.Pop()
	require.False(t, ok)
}
