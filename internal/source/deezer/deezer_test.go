package deezer

import (
	"context"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/wavelink/wavelink/internal/source"
)

func newTestSource(t *testing.T) *Source {
	t.Helper()
	s, err := New(resty.New(), "test-arl", "00112233445566778899aabbccddeeff")
	require.NoError(t, err)
	return s
}

func TestNewRejectsNonHexKey(t *testing.T) {
	_, err := New(resty.New(), "arl", "not-hex")
	require.Error(t, err)
}

func TestNewRejectsWrongLengthKey(t *testing.T) {
	_, err := New(resty.New(), "arl", "aabb")
	require.Error(t, err)
}

func TestParseQueryMatchesTrackURL(t *testing.T) {
	s := newTestSource(t)
	q, ok := s.ParseQuery("https://www.deezer.com/en/track/123456")
	require.True(t, ok)
	require.Equal(t, source.QueryURL, q.Kind)
}

func TestParseQueryAcceptsSearchPrefixes(t *testing.T) {
	s := newTestSource(t)
	for _, text := range []string{"dzsearch:daft punk", "dzisrc:USUM71703861", "dzrec:123"} {
		_, ok := s.ParseQuery(text)
		require.True(t, ok, text)
	}
}

func TestParseQueryRejectsUnrelatedText(t *testing.T) {
	s := newTestSource(t)
	_, ok := s.ParseQuery("ytsearch:some song")
	require.False(t, ok)
	_, ok = s.ParseQuery("https://example.com/a.mp3")
	require.False(t, ok)
}

func TestURLRegexCapturesTypeAndID(t *testing.T) {
	m := urlRe.FindStringSubmatch("https://deezer.com/album/987")
	require.NotNil(t, m)
	require.Equal(t, "album", m[1])
	require.Equal(t, "987", m[2])
}

func TestPickFormatPrefersFLACThenFallsBack(t *testing.T) {
	require.Equal(t, "FLAC", pickFormat(songDataResult{FilesizeFLAC: "123456"}))
	require.Equal(t, "MP3_320", pickFormat(songDataResult{FilesizeFLAC: "0", FilesizeMP3320: "42"}))
	require.Equal(t, "MP3_256", pickFormat(songDataResult{FilesizeMP3256: "1"}))
	require.Equal(t, "MP3_128", pickFormat(songDataResult{}))
}

func TestTrackKeyIsDeterministicAndSixteenBytes(t *testing.T) {
	secret := make([]byte, 16)
	for i := range secret {
		secret[i] = byte(i)
	}
	k1 := trackKey("123456789", secret)
	k2 := trackKey("123456789", secret)
	require.Equal(t, k1, k2)

	k3 := trackKey("987654321", secret)
	require.NotEqual(t, k1, k3)
}

func TestRecPrefixResolvesToEmptyNotError(t *testing.T) {
	s := newTestSource(t)
	result, err := s.resolveSearch(context.Background(), "dzrec:whatever")
	require.NoError(t, err)
	require.Equal(t, source.ResultEmpty, result.Kind)
}
