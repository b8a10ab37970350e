// Package codec implements the Lavalink track-blob binary format: a
// big-endian, versioned byte string carried on the wire as base64.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/wavelink/wavelink/internal/model"
)

// versionedFlag marks that an explicit version byte follows the header.
// Every blob this package encodes sets it; version-less (v1, implicit)
// blobs are still accepted on decode.
const versionedFlag = 0x01

const sizeMask = 0x3FFFFFFF

// ErrUnknownVersion is returned for any version byte other than 1, 2, 3.
type ErrUnknownVersion struct{ Version uint8 }

func (e ErrUnknownVersion) Error() string {
	return fmt.Sprintf("codec: unknown track version %d", e.Version)
}

// DecodedTrack is a decoded handle plus the header fields the wire format
// carries alongside the TrackInfo payload: the two-bit flags word and the
// version the blob was actually parsed as (always 1 for a version-less
// legacy blob, per the header's versioned bit).
type DecodedTrack struct {
	model.TrackInfo
	Flags   uint32
	Version uint8
}

// Decode parses a base64 track handle into a DecodedTrack. SourceName and
// Position are not touched by the caller; Position always decodes to the
// stored position_ms.
func Decode(encoded string) (DecodedTrack, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return DecodedTrack{}, fmt.Errorf("codec: base64 decode: %w", err)
	}
	r := bytes.NewReader(raw)

	var header uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return DecodedTrack{}, fmt.Errorf("codec: read header: %w", err)
	}
	flags := (header >> 30) & 0x3
	_ = header & sizeMask // size is informational; the reader is already bounded by raw's length

	version := uint8(1)
	if flags&versionedFlag != 0 {
		v, err := readU8(r)
		if err != nil {
			return DecodedTrack{}, fmt.Errorf("codec: read version: %w", err)
		}
		version = v
	}

	var info model.TrackInfo
	switch version {
	case 1:
		info, err = decodeV1(r)
	case 2:
		info, err = decodeV2(r)
	case 3:
		info, err = decodeV3(r)
	default:
		return DecodedTrack{}, ErrUnknownVersion{Version: version}
	}
	if err != nil {
		return DecodedTrack{}, err
	}
	return DecodedTrack{TrackInfo: info, Flags: flags, Version: version}, nil
}

func decodeV1(r *bytes.Reader) (model.TrackInfo, error) {
	var info model.TrackInfo
	var err error
	if info.Title, err = readString(r); err != nil {
		return info, err
	}
	if info.Author, err = readString(r); err != nil {
		return info, err
	}
	if info.Length, err = readU64(r); err != nil {
		return info, err
	}
	if info.Identifier, err = readString(r); err != nil {
		return info, err
	}
	isStream, err := readU8(r)
	if err != nil {
		return info, err
	}
	info.IsStream = isStream != 0
	if info.SourceName, err = readString(r); err != nil {
		return info, err
	}
	if info.Position, err = readU64(r); err != nil {
		return info, err
	}
	info.IsSeekable = !info.IsStream
	return info, nil
}

func decodeV2(r *bytes.Reader) (model.TrackInfo, error) {
	var info model.TrackInfo
	var err error
	if info.Title, err = readString(r); err != nil {
		return info, err
	}
	if info.Author, err = readString(r); err != nil {
		return info, err
	}
	if info.Length, err = readU64(r); err != nil {
		return info, err
	}
	if info.Identifier, err = readString(r); err != nil {
		return info, err
	}
	isStream, err := readU8(r)
	if err != nil {
		return info, err
	}
	info.IsStream = isStream != 0
	if info.URI, err = readOptString(r); err != nil {
		return info, err
	}
	if info.SourceName, err = readString(r); err != nil {
		return info, err
	}
	if info.Position, err = readU64(r); err != nil {
		return info, err
	}
	info.IsSeekable = !info.IsStream
	return info, nil
}

func decodeV3(r *bytes.Reader) (model.TrackInfo, error) {
	var info model.TrackInfo
	var err error
	if info.Title, err = readString(r); err != nil {
		return info, err
	}
	if info.Author, err = readString(r); err != nil {
		return info, err
	}
	if info.Length, err = readU64(r); err != nil {
		return info, err
	}
	if info.Identifier, err = readString(r); err != nil {
		return info, err
	}
	isStream, err := readU8(r)
	if err != nil {
		return info, err
	}
	info.IsStream = isStream != 0
	if info.URI, err = readOptString(r); err != nil {
		return info, err
	}
	if info.ArtworkURL, err = readOptString(r); err != nil {
		return info, err
	}
	if info.ISRC, err = readOptString(r); err != nil {
		return info, err
	}
	if info.SourceName, err = readString(r); err != nil {
		return info, err
	}
	if info.Position, err = readU64(r); err != nil {
		return info, err
	}
	info.IsSeekable = !info.IsStream
	return info, nil
}

// Encode always emits a v3, versioned blob.
func Encode(info model.TrackInfo) (string, error) {
	var body bytes.Buffer
	writeString(&body, info.Title)
	writeString(&body, info.Author)
	writeU64(&body, uint64(info.Length))
	writeString(&body, info.Identifier)
	writeU8(&body, boolByte(info.IsStream))
	writeOptString(&body, info.URI)
	writeOptString(&body, info.ArtworkURL)
	writeOptString(&body, info.ISRC)
	writeString(&body, info.SourceName)
	writeU64(&body, uint64(info.Position))

	if body.Len() > sizeMask {
		return "", errors.New("codec: track body exceeds maximum encodable size")
	}

	header := (uint32(versionedFlag) << 30) | uint32(body.Len())

	var out bytes.Buffer
	writeU32(&out, header)
	writeU8(&out, 3)
	out.Write(body.Bytes())

	return base64.StdEncoding.EncodeToString(out.Bytes()), nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func readU8(r *bytes.Reader) (uint8, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, wrapShortRead(err)
	}
	return b, nil
}

func readU64(r *bytes.Reader) (int64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, wrapShortRead(err)
	}
	return int64(v), nil
}

func readString(r *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", wrapShortRead(err)
	}
	if r.Len() < int(length) {
		return "", fmt.Errorf("codec: string length %d exceeds remaining %d bytes", length, r.Len())
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", wrapShortRead(err)
	}
	return string(buf), nil
}

func readOptString(r *bytes.Reader) (string, error) {
	present, err := readU8(r)
	if err != nil {
		return "", err
	}
	if present == 0 {
		return "", nil
	}
	return readString(r)
}

func wrapShortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("codec: unexpected end of track blob: %w", err)
	}
	return err
}

func writeU8(w *bytes.Buffer, v uint8)   { w.WriteByte(v) }
func writeU32(w *bytes.Buffer, v uint32) { binary.Write(w, binary.BigEndian, v) }
func writeU64(w *bytes.Buffer, v uint64) { binary.Write(w, binary.BigEndian, v) }

func writeString(w *bytes.Buffer, s string) {
	binary.Write(w, binary.BigEndian, uint16(len(s)))
	w.WriteString(s)
}

func writeOptString(w *bytes.Buffer, s string) {
	if s == "" {
		writeU8(w, 0)
		return
	}
	writeU8(w, 1)
	writeString(w, s)
}
