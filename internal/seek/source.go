// Package seek bridges a one-shot streaming HTTP response body into a
// randomly seekable, optionally block-cipher-decrypted byte source for
// the mixer.
package seek

import (
	"crypto/cipher"
	"errors"
	"io"

	"golang.org/x/crypto/blowfish"
)

// ErrUnsupportedSeek is returned for SeekEnd against a stream of unknown
// length.
var ErrUnsupportedSeek = errors.New("seek: unsupported on stream of unknown length")

// ErrInvalidOffset is returned for a seek that would resolve to a negative
// absolute position.
var ErrInvalidOffset = errors.New("seek: resulting offset is negative")

const (
	// PlainChunkSize is the read granularity for unencrypted streams.
	PlainChunkSize = 128
	// CipherChunkSize is the read granularity for chunk-stripe-ciphered
	// streams; it must be a multiple of the cipher's block size.
	CipherChunkSize = 2048
)

// fixedIV is the chunk-stripe cipher's constant initialisation vector.
// Every decrypted chunk starts a fresh CBC chain from this IV rather than
// chaining across chunks, which is what makes the cipher seekable.
var fixedIV = [8]byte{0, 1, 2, 3, 4, 5, 6, 7}

// ReopenFunc opens a new body starting at the given absolute byte offset,
// typically via an HTTP Range request. Implementations should return
// ErrRangeNotSupported-style errors verbatim; Source does not interpret
// them beyond propagating.
type ReopenFunc func(offset int64) (io.ReadCloser, error)

// Source implements io.ReadSeeker (sans interface declaration, since the
// mixer's contract is byte-addressable read+seek, not Go's io.Seeker
// signature verbatim — Seek here takes and returns int64 like io.Seeker,
// so *Source does satisfy io.ReadSeeker).
type Source struct {
	reopen      ReopenFunc
	totalLen    int64
	knownLength bool
	chunkSize   int
	key         []byte // 16-byte chunk-stripe key; nil disables decryption

	body     io.ReadCloser
	bufStart int64
	buf      []byte
	position int64
	closed   bool
}

// New wraps an already-open response body. totalLen is the stream's
// Content-Length, or -1 if absent (treated as non-seekable-to-end). key,
// if non-nil, must be exactly 16 bytes and enables chunk-stripe
// decryption; chunkSize should be CipherChunkSize in that case and
// PlainChunkSize otherwise.
func New(body io.ReadCloser, totalLen int64, chunkSize int, key []byte, reopen ReopenFunc) *Source {
	return &Source{
		reopen:      reopen,
		totalLen:    totalLen,
		knownLength: totalLen >= 0,
		chunkSize:   chunkSize,
		key:         key,
		body:        body,
	}
}

// Len reports the stream's total length, or -1 if unknown.
func (s *Source) Len() int64 { return s.totalLen }

func (s *Source) frontier() int64 { return s.bufStart + int64(len(s.buf)) }

// Read implements io.Reader.
func (s *Source) Read(p []byte) (int, error) {
	if s.closed {
		return 0, io.EOF
	}
	if len(s.buf) > 0 && s.position >= s.bufStart && s.position < s.frontier() {
		n := copy(p, s.buf[s.position-s.bufStart:])
		s.position += int64(n)
		return n, nil
	}
	// Not inside the currently buffered chunk. If position isn't exactly
	// where the open body would continue from, this is a genuine jump
	// (a seek that didn't already realign, or the first read after
	// construction when position is 0 and so is bufStart) — otherwise
	// the body is already positioned to hand us the next chunk.
	if s.position != s.frontier() {
		if err := s.realign(s.position); err != nil {
			return 0, err
		}
	}
	if s.body == nil {
		return 0, io.EOF
	}
	if err := s.fillNextChunk(); err != nil {
		return 0, err
	}
	rel := s.position - s.bufStart
	if rel < 0 || rel >= int64(len(s.buf)) {
		// Seek landed exactly at (or past) the true end of the stream;
		// the chunk we just pulled doesn't cover it.
		return 0, io.EOF
	}
	n := copy(p, s.buf[rel:])
	s.position += int64(n)
	return n, nil
}

func (s *Source) fillNextChunk() error {
	chunkStart := s.frontier()
	chunk := make([]byte, s.chunkSize)
	read := 0
	for read < s.chunkSize {
		n, err := s.body.Read(chunk[read:])
		read += n
		if err == io.EOF {
			s.body.Close()
			s.body = nil
			break
		}
		if err != nil && err != io.EOF {
			return err
		}
		if n == 0 && err == nil {
			break
		}
	}
	chunk = chunk[:read]

	full := read == s.chunkSize
	chunkIndex := chunkStart / int64(s.chunkSize)
	if s.key != nil && full && chunkIndex%3 == 0 {
		if err := decryptChunkStripe(chunk, s.key); err != nil {
			return err
		}
	}

	s.bufStart = chunkStart
	s.buf = chunk
	return nil
}

func (s *Source) realign(target int64) error {
	chunkAligned := (target / int64(s.chunkSize)) * int64(s.chunkSize)
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
	body, err := s.reopen(chunkAligned)
	if err != nil {
		return err
	}
	s.body = body
	s.bufStart = chunkAligned
	s.buf = nil
	return nil
}

// Seek implements the spec's SeekFrom semantics: absolute position
// clamped to total length when known, negative results rejected, SeekEnd
// on an unknown-length stream rejected.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.position + offset
	case io.SeekEnd:
		if !s.knownLength {
			return 0, ErrUnsupportedSeek
		}
		target = s.totalLen + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if target < 0 {
		return 0, ErrInvalidOffset
	}
	if s.knownLength && target > s.totalLen {
		target = s.totalLen
	}

	if target >= s.bufStart && target <= s.frontier() {
		s.position = target
		return target, nil
	}

	if err := s.realign(target); err != nil {
		return 0, err
	}
	if err := s.fillNextChunk(); err != nil && err != io.EOF {
		return 0, err
	}
	s.position = target
	return target, nil
}

// Close releases the underlying body, if any.
func (s *Source) Close() error {
	s.closed = true
	if s.body != nil {
		err := s.body.Close()
		s.body = nil
		return err
	}
	return nil
}

func decryptChunkStripe(data []byte, key []byte) error {
	block, err := blowfish.NewCipher(key)
	if err != nil {
		return err
	}
	mode := cipher.NewCBCDecrypter(block, fixedIV[:])
	if len(data)%mode.BlockSize() != 0 {
		return errors.New("seek: chunk length is not a multiple of the cipher block size")
	}
	mode.CryptBlocks(data, data)
	return nil
}
