// Package source defines the polymorphic source contract (§4.5) and the
// registry that classifies and dispatches identifiers to a concrete
// provider. Concrete providers live in the httpsource, youtube and
// deezer subpackages.
package source

import (
	"context"
	"errors"
	"io"

	"github.com/wavelink/wavelink/internal/model"
)

// QueryKind discriminates a classified identifier.
type QueryKind int

const (
	QueryURL QueryKind = iota
	QuerySearch
)

// Query is the output of ParseQuery: either a direct URL or a search
// phrase (already stripped of its prefix, e.g. "ytsearch:").
type Query struct {
	Kind  QueryKind
	Value string
}

// ResultKind discriminates TrackResult, mirroring the wire LoadType.
type ResultKind int

const (
	ResultTrack ResultKind = iota
	ResultPlaylist
	ResultSearch
	ResultEmpty
	ResultError
)

// TrackResult is the internal counterpart of model.LoadResult. Building
// the wire shape is the API layer's job; sources only ever produce this.
type TrackResult struct {
	Kind     ResultKind
	Track    model.Track
	Playlist model.TrackPlaylist
	Tracks   []model.Track
	Err      error
}

func Empty() TrackResult                     { return TrackResult{Kind: ResultEmpty} }
func OneTrack(t model.Track) TrackResult      { return TrackResult{Kind: ResultTrack, Track: t} }
func Search(ts []model.Track) TrackResult     { return TrackResult{Kind: ResultSearch, Tracks: ts} }
func Playlist(p model.TrackPlaylist) TrackResult {
	return TrackResult{Kind: ResultPlaylist, Playlist: p}
}
func ErrorResult(err error) TrackResult { return TrackResult{Kind: ResultError, Err: err} }

// Stream is what MakePlayable hands to the voice driver: a seekable byte
// source plus a hint about its content.
type Stream struct {
	Reader   io.ReadSeekCloser
	MimeType string
}

// Source is the capability every provider implements. Name must be the
// same lowercase string every Track it produces carries as SourceName.
type Source interface {
	Name() string
	ParseQuery(text string) (Query, bool)
	Resolve(ctx context.Context, q Query) (TrackResult, error)
	MakePlayable(ctx context.Context, info model.TrackInfo) (Stream, error)
}

// ErrNoSource is returned by MakePlayable when a track's source_name
// doesn't match any registered source.
var ErrNoSource = errors.New("source: no provider registered for source_name")

// Registry dispatches ParseQuery/Resolve in insertion order (first
// non-empty match wins) and MakePlayable by exact source_name.
type Registry struct {
	ordered []Source
	byName  map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Source)}
}

func (r *Registry) Register(s Source) {
	r.ordered = append(r.ordered, s)
	r.byName[s.Name()] = s
}

// Classify runs ParseQuery over every registered source in insertion
// order and returns the first match along with the source that matched.
func (r *Registry) Classify(text string) (Source, Query, bool) {
	for _, s := range r.ordered {
		if q, ok := s.ParseQuery(text); ok {
			return s, q, true
		}
	}
	return nil, Query{}, false
}

// MakePlayable routes by the track's declared source_name.
func (r *Registry) MakePlayable(ctx context.Context, info model.TrackInfo) (Stream, error) {
	s, ok := r.byName[info.SourceName]
	if !ok {
		return Stream{}, ErrNoSource
	}
	return s.MakePlayable(ctx, info)
}
