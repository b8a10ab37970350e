// Package driver defines the voice driver contract a Player depends on
// (§4.3) and a reference implementation that performs the real Discord
// voice gateway handshake. Actual Opus encoding / RTP transmission of the
// decoded byte stream is forwarded to a FrameSink rather than implemented
// here — the audio mixing graph itself is out of scope.
package driver

import (
	"context"
	"io"
)

// CloseCode names a voice-connection close condition the way the
// underlying driver reports it, independent of any single signalling
// protocol's literal wire values. MapCloseCode translates these into the
// control-protocol's WebSocketClosedEvent code.
type CloseCode int

const (
	CloseUnknownOpcode CloseCode = iota
	CloseInvalidPayload
	CloseNotAuthenticated
	CloseAuthenticationFailed
	CloseAlreadyAuthenticated
	CloseSessionInvalid
	CloseSessionTimeout
	CloseServerNotFound
	CloseUnknownProtocol
	CloseDisconnected
	CloseVoiceServerCrash
	CloseUnknownEncryptionMode
)

// MapCloseCode implements the §6 voice-close mapping table. ok is false
// for a graceful close (wireCode 1000), in which case the caller should
// still emit WebSocketClosedEvent with by_remote=false.
func MapCloseCode(c CloseCode, graceful bool) (wireCode int, reason string) {
	if graceful {
		return 1000, "Graceful close"
	}
	switch c {
	case CloseUnknownOpcode:
		return 4001, "Unknown Op Code"
	case CloseInvalidPayload:
		return 4003, "Invalid Payload"
	case CloseNotAuthenticated:
		return 4004, "Not Authenticated"
	case CloseAuthenticationFailed:
		return 4005, "Authentication Failed"
	case CloseAlreadyAuthenticated:
		return 4006, "Already Authenticated"
	case CloseSessionInvalid:
		return 4009, "Session Invalid"
	case CloseSessionTimeout:
		return 4011, "Session Timeout"
	case CloseServerNotFound:
		return 4012, "Server Not Found"
	case CloseUnknownProtocol:
		return 4012, "Unknown Protocol"
	case CloseDisconnected:
		return 4013, "Disconnected"
	case CloseVoiceServerCrash:
		return 4015, "Voice Server Crash"
	case CloseUnknownEncryptionMode:
		return 4016, "Unknown Encryption Mode"
	default:
		return 1000, "Graceful close"
	}
}

// Credentials are the voice-server handshake inputs supplied by a
// player-update REST call.
type Credentials struct {
	Token     string
	Endpoint  string
	SessionID string
}

// FrameSink receives raw decoded PCM bytes; the concrete mixer/RTP
// transmission path lives outside this module.
type FrameSink interface {
	WriteFrame(pcm []byte) error
}

// DiscardSink drops every frame. It is the default FrameSink until a
// real Opus/RTP mixer is wired in.
type DiscardSink struct{}

func (DiscardSink) WriteFrame(pcm []byte) error { return nil }

// EventHandler receives the driver's global and per-track callbacks. A
// Player implements this and is the only registered handler per driver
// instance (one driver per guild).
type EventHandler interface {
	OnDriverDisconnect(code CloseCode, graceful bool)
	OnPeriodic(positionMS int64, connected bool, pingMS int)
	OnTrackPlayable()
	OnTrackEnd()
	OnTrackError(err error)
}

// Driver is the black-box voice connection contract a Player drives.
// One Driver instance serves exactly one guild for its whole lifetime;
// reconnecting calls Connect again with fresh Credentials.
type Driver interface {
	Connect(ctx context.Context, creds Credentials) error
	ApplyFilters(raw []byte) error
	Play(ctx context.Context, stream io.ReadSeekCloser) error
	Stop()
	Pause(paused bool)
	Seek(ctx context.Context, positionMS int64) error
	SetVolume(volume float64)
	Disconnect() error
	RegisterEventHandler(h EventHandler)
}
