package model

import "encoding/json"

// LoadType discriminates TrackLoadResult.Data.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// Severity classifies a TrackLoadException / TrackException.
type Severity string

const (
	SeverityCommon     Severity = "common"
	SeveritySuspicious Severity = "suspicious"
	SeverityFault      Severity = "fault"
)

// PlaylistInfo is the header of a resolved playlist.
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// TrackPlaylist is the loadType=playlist payload shape.
type TrackPlaylist struct {
	Info       PlaylistInfo   `json:"info"`
	PluginInfo map[string]any `json:"pluginInfo"`
	Tracks     []Track        `json:"tracks"`
}

// TrackLoadException is the loadType=error payload shape.
type TrackLoadException struct {
	Message string   `json:"message"`
	Severity Severity `json:"severity"`
	Cause   string   `json:"cause"`
}

// LoadResult is the full /v4/loadtracks response: loadType tags which of
// the data shapes is populated.
type LoadResult struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

func newLoadResult(loadType LoadType, data any) LoadResult {
	raw, err := json.Marshal(data)
	if err != nil {
		// data is always one of our own types; a marshal failure here
		// means a programming error, not a runtime condition.
		panic(err)
	}
	return LoadResult{LoadType: loadType, Data: raw}
}

func TrackLoadResult(t Track) LoadResult              { return newLoadResult(LoadTypeTrack, t) }
func PlaylistLoadResult(p TrackPlaylist) LoadResult   { return newLoadResult(LoadTypePlaylist, p) }
func SearchLoadResult(tracks []Track) LoadResult      { return newLoadResult(LoadTypeSearch, tracks) }
func ErrorLoadResult(e TrackLoadException) LoadResult { return newLoadResult(LoadTypeError, e) }

func EmptyLoadResult() LoadResult {
	return LoadResult{LoadType: LoadTypeEmpty, Data: json.RawMessage("null")}
}
