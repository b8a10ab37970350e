package httpsource

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/wavelink/wavelink/internal/model"
	"github.com/wavelink/wavelink/internal/source"
)

func TestParseQueryAcceptsAbsoluteHTTPURL(t *testing.T) {
	s := New(resty.New())
	_, ok := s.ParseQuery("https://example.com/song.mp3")
	require.True(t, ok)

	_, ok = s.ParseQuery("ytsearch:lofi")
	require.False(t, ok)

	_, ok = s.ParseQuery("not a url at all")
	require.False(t, ok)
}

func TestResolveAudioContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", "4000000")
	}))
	defer srv.Close()

	s := New(resty.New())
	result, err := s.Resolve(context.Background(), source.Query{Kind: source.QueryURL, Value: srv.URL})
	require.NoError(t, err)
	require.Equal(t, source.ResultTrack, result.Kind)
	require.Equal(t, srv.URL, result.Track.Info.URI)
	require.False(t, result.Track.Info.IsStream)
	require.Equal(t, Name, result.Track.Info.SourceName)
}

func TestResolveNonAudioContentTypeIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	s := New(resty.New())
	result, err := s.Resolve(context.Background(), source.Query{Kind: source.QueryURL, Value: srv.URL})
	require.NoError(t, err)
	require.Equal(t, source.ResultEmpty, result.Kind)
}

func TestMakePlayableStreamsBody(t *testing.T) {
	payload := []byte("fake-audio-bytes-0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	s := New(resty.New())
	stream, err := s.MakePlayable(context.Background(), model.TrackInfo{URI: srv.URL, SourceName: Name})
	require.NoError(t, err)
	defer stream.Reader.Close()

	got, err := io.ReadAll(stream.Reader)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
