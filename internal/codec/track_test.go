package codec

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavelink/wavelink/internal/model"
)

func TestRoundTripV3(t *testing.T) {
	info := model.TrackInfo{
		Title:      "WIND - \" Dust \"",
		Author:     "Some Author",
		Length:     285000,
		Identifier: "abc123",
		IsStream:   false,
		IsSeekable: true,
		URI:        "https://example.com/abc123",
		ArtworkURL: "https://example.com/art.png",
		ISRC:       "US1234567890",
		SourceName: "youtube",
		Position:   0,
	}

	encoded, err := Encode(info)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, info, decoded.TrackInfo)
	require.Equal(t, uint8(3), decoded.Version)
}

func TestRoundTripOmitsOptionalFields(t *testing.T) {
	info := model.TrackInfo{
		Title:      "bare track",
		Author:     "unknown",
		Length:     1000,
		Identifier: "xyz",
		IsStream:   true,
		IsSeekable: false,
		SourceName: "http",
		Position:   500,
	}

	encoded, err := Encode(info)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, info, decoded.TrackInfo)
	require.Empty(t, decoded.URI)
	require.Empty(t, decoded.ArtworkURL)
	require.Empty(t, decoded.ISRC)
}

func TestDecodeUnknownVersion(t *testing.T) {
	info := model.TrackInfo{Title: "t", SourceName: "http"}
	encoded, err := Encode(info)
	require.NoError(t, err)

	raw := mustBase64Decode(t, encoded)
	// the version byte is the 5th byte, right after the 4-byte header.
	raw[4] = 4
	bumped := base64.StdEncoding.EncodeToString(raw)

	_, err = Decode(bumped)
	require.Error(t, err)
	var unknownVersion ErrUnknownVersion
	require.ErrorAs(t, err, &unknownVersion)
	require.Equal(t, uint8(4), unknownVersion.Version)
}

func TestDecodeTruncatedStringLength(t *testing.T) {
	info := model.TrackInfo{Title: "t", SourceName: "http"}
	encoded, err := Encode(info)
	require.NoError(t, err)

	raw := mustBase64Decode(t, encoded)
	truncated := base64.StdEncoding.EncodeToString(raw[:len(raw)-3])

	_, err = Decode(truncated)
	require.Error(t, err)
}

func TestEncodeIsDeterministic(t *testing.T) {
	info := model.TrackInfo{
		Title:      "same",
		Author:     "author",
		Length:     1,
		Identifier: "id",
		SourceName: "http",
	}
	a, err := Encode(info)
	require.NoError(t, err)
	b, err := Encode(info)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func mustBase64Decode(t *testing.T, s string) []byte {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return raw
}
