package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wavelink/wavelink/internal/codec"
	"github.com/wavelink/wavelink/internal/config"
	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/model"
	"github.com/wavelink/wavelink/internal/player"
	"github.com/wavelink/wavelink/internal/session"
	"github.com/wavelink/wavelink/internal/source"
)

// ProtocolVersion is the Lavalink wire-protocol major version this node
// speaks.
const ProtocolVersion = "4"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server holds every collaborator the REST/WebSocket surface needs.
type Server struct {
	Sessions *session.Registry
	Sources  *source.Registry
	Cfg      *config.Config
}

func NewServer(sessions *session.Registry, sources *source.Registry, cfg *config.Config) *Server {
	return &Server{Sessions: sessions, Sources: sources, Cfg: cfg}
}

func (s *Server) Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, ProtocolVersion)
}

func (s *Server) Landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "wavelink")
}

// decodedTrackResponse is the flat shape `/decodetrack` answers with,
// field-for-field on the decoder's own struct rather than the nested
// Track/TrackInfo the rest of the REST surface uses — it exposes the
// header's raw flags/version alongside the payload.
type decodedTrackResponse struct {
	Flags      uint32 `json:"flags"`
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"is_stream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	Version    uint8  `json:"version"`
}

func (s *Server) DecodeTrack(w http.ResponseWriter, r *http.Request) {
	encoded := r.URL.Query().Get("track")
	if encoded == "" {
		writeError(w, missingQuery("track"))
		return
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		writeError(w, badTrackBlob(err))
		return
	}
	writeJSON(w, http.StatusOK, decodedTrackResponse{
		Flags:      decoded.Flags,
		Source:     decoded.SourceName,
		Identifier: decoded.Identifier,
		Author:     decoded.Author,
		Length:     decoded.Length,
		IsStream:   decoded.IsStream,
		Position:   decoded.Position,
		Title:      decoded.Title,
		URI:        decoded.URI,
		ArtworkURL: decoded.ArtworkURL,
		ISRC:       decoded.ISRC,
		Version:    decoded.Version,
	})
}

func (s *Server) LoadTracks(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, missingQuery("identifier"))
		return
	}
	result := s.resolveIdentifier(r.Context(), identifier)
	writeJSON(w, http.StatusOK, result)
}

// resolveIdentifier never returns an error: unresolvable identifiers and
// upstream resolve failures both collapse into a LoadResult, per §7's
// "expected no-result conditions never surface as errors" policy.
func (s *Server) resolveIdentifier(ctx context.Context, identifier string) model.LoadResult {
	src, q, ok := s.Sources.Classify(identifier)
	if !ok {
		return model.EmptyLoadResult()
	}
	result, err := src.Resolve(ctx, q)
	if err != nil {
		return model.ErrorLoadResult(model.TrackLoadException{
			Message:  err.Error(),
			Severity: model.SeverityFault,
			Cause:    "resolve failed",
		})
	}
	switch result.Kind {
	case source.ResultTrack:
		return model.TrackLoadResult(result.Track)
	case source.ResultPlaylist:
		return model.PlaylistLoadResult(result.Playlist)
	case source.ResultSearch:
		return model.SearchLoadResult(result.Tracks)
	case source.ResultError:
		msg := ""
		if result.Err != nil {
			msg = result.Err.Error()
		}
		return model.ErrorLoadResult(model.TrackLoadException{
			Message:  msg,
			Severity: model.SeverityCommon,
			Cause:    "source reported an error",
		})
	default:
		return model.EmptyLoadResult()
	}
}

// resolveSingleTrack is used by PATCH player's identifier shortcut: it
// takes the first track of a search/track result, or fails loudly for
// playlists/empties/errors since a player slot needs exactly one track.
func (s *Server) resolveSingleTrack(ctx context.Context, identifier string) (model.Track, error) {
	src, q, ok := s.Sources.Classify(identifier)
	if !ok {
		return model.Track{}, unprocessableIdentifier(identifier)
	}
	result, err := src.Resolve(ctx, q)
	if err != nil {
		return model.Track{}, internal(fmt.Errorf("resolve %q: %w", identifier, err))
	}
	switch result.Kind {
	case source.ResultTrack:
		return result.Track, nil
	case source.ResultSearch:
		if len(result.Tracks) == 0 {
			return model.Track{}, unprocessableIdentifier(identifier)
		}
		return result.Tracks[0], nil
	default:
		return model.Track{}, unprocessableIdentifier(identifier)
	}
}

func unprocessableIdentifier(identifier string) *Error {
	return malformed(fmt.Sprintf("identifier %q did not resolve to a playable track", identifier))
}

func (s *Server) session(r *http.Request) (*session.Session, *Error) {
	sid := mux.Vars(r)["sid"]
	sess, ok := s.Sessions.GetBySessionID(sid)
	if !ok {
		return nil, notFound("session")
	}
	return sess, nil
}

func (s *Server) GetPlayer(w http.ResponseWriter, r *http.Request) {
	sess, apiErr := s.session(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	gid := mux.Vars(r)["gid"]
	p, ok := sess.Players.Get(gid)
	if !ok {
		writeError(w, notFound("player"))
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *Server) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	sess, apiErr := s.session(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	gid := mux.Vars(r)["gid"]
	sess.Players.Disconnect(gid)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	sess, apiErr := s.session(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	gid := mux.Vars(r)["gid"]
	noReplace := r.URL.Query().Get("noReplace") == "true"

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, malformed("unreadable request body"))
		return
	}
	var opts model.PlayerOptions
	if len(body) > 0 {
		if err := json.Unmarshal(body, &opts); err != nil {
			writeError(w, malformed("invalid PlayerOptions JSON: "+err.Error()))
			return
		}
	}

	ctx := r.Context()
	p, ok := sess.Players.Get(gid)
	if !ok {
		if opts.Voice == nil {
			writeError(w, notFound("player"))
			return
		}
		created, err := sess.Players.CreateOrConnect(ctx, gid, credentialsFromVoice(*opts.Voice))
		if err != nil {
			writeError(w, internal(err))
			return
		}
		p = created
	} else if opts.Voice != nil {
		if err := p.Connect(ctx, credentialsFromVoice(*opts.Voice)); err != nil {
			writeError(w, internal(err))
			return
		}
	}

	if opts.Track != nil && !(noReplace && p.CurrentTrack() != nil) {
		if err := s.applyTrackUpdate(ctx, p, *opts.Track); err != nil {
			writeError(w, err)
			return
		}
	}

	if opts.Position != nil {
		if err := p.Seek(ctx, *opts.Position); err != nil {
			writeError(w, seekError(err))
			return
		}
	}

	if opts.Volume != nil {
		p.SetVolume(*opts.Volume)
	}

	if opts.Paused != nil {
		p.Pause(*opts.Paused)
	}

	if opts.Filters != nil {
		raw, err := json.Marshal(*opts.Filters)
		if err != nil {
			writeError(w, internal(err))
			return
		}
		if err := p.SetFilters(*opts.Filters, raw); err != nil {
			writeError(w, internal(err))
			return
		}
	}

	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *Server) applyTrackUpdate(ctx context.Context, p *player.Player, track model.UpdatePlayerTrack) *Error {
	switch {
	case track.Encoded != nil:
		if err := p.Play(ctx, *track.Encoded); err != nil {
			return badTrackBlob(err)
		}
		return nil
	case track.Identifier != nil:
		resolved, apiErr := s.resolveSingleTrack(ctx, *track.Identifier)
		if apiErr != nil {
			return apiErr.(*Error)
		}
		if err := p.Play(ctx, resolved.Encoded); err != nil {
			return internal(err)
		}
		return nil
	default:
		p.Stop()
		return nil
	}
}

func seekError(err error) *Error {
	switch {
	case errors.Is(err, player.ErrNoTrack):
		return notFound("track")
	case errors.Is(err, player.ErrUnsupportedSeek):
		return malformed("track is not seekable")
	default:
		return internal(err)
	}
}

func credentialsFromVoice(v model.Voice) driver.Credentials {
	return driver.Credentials{Token: v.Token, Endpoint: v.Endpoint, SessionID: v.SessionID}
}

func (s *Server) PatchSession(w http.ResponseWriter, r *http.Request) {
	sess, apiErr := s.session(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	var info model.SessionInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeError(w, malformed("invalid session info JSON: "+err.Error()))
		return
	}
	sess.SetResumable(info.Resuming)
	if info.Timeout > 0 {
		sess.SetResumeTimeout(time.Duration(info.Timeout) * time.Second)
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("User-Id")
	if userID == "" {
		writeError(w, missingHeader("User-Id"))
		return
	}
	if _, err := strconv.ParseUint(userID, 10, 64); err != nil {
		writeError(w, malformed("User-Id must be a 64-bit unsigned integer"))
		return
	}
	if r.Header.Get("User-Agent") == "" {
		writeError(w, missingHeader("User-Agent"))
		return
	}
	sessionID := r.Header.Get("Session-Id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Sessions.Upgrade(userID, sessionID, conn)
}
