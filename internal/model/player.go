package model

// Voice carries the credentials a client extracts from Discord's own
// gateway and hands to this node; the node never sees a bot token.
type Voice struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
	Connected *bool  `json:"connected,omitempty"`
	Ping      *int   `json:"ping,omitempty"`
}

// PlayerState is the live driver-observed position/connection snapshot.
type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// Player is the REST-visible shape of a guild player.
type Player struct {
	GuildID string      `json:"guildId"`
	Track   *Track      `json:"track"`
	Volume  int         `json:"volume"`
	Paused  bool        `json:"paused"`
	State   PlayerState `json:"state"`
	Voice   Voice       `json:"voice"`
	Filters Filters     `json:"filters"`
}

// UpdatePlayerTrack is the "track" field of a PATCH players body: either an
// already-encoded handle, a raw identifier to resolve, or null to clear.
type UpdatePlayerTrack struct {
	Encoded    *string        `json:"encoded,omitempty"`
	Identifier *string        `json:"identifier,omitempty"`
	UserData   map[string]any `json:"userData,omitempty"`
}

// PlayerOptions is the PATCH /sessions/{sid}/players/{gid} request body.
// Every field is optional; only the ones present are applied.
type PlayerOptions struct {
	Track      *UpdatePlayerTrack `json:"track,omitempty"`
	Identifier *string            `json:"identifier,omitempty"`
	Position   *int64             `json:"position,omitempty"`
	EndTime    *int64             `json:"endTime,omitempty"`
	Volume     *int               `json:"volume,omitempty"`
	Paused     *bool              `json:"paused,omitempty"`
	Filters    *Filters           `json:"filters,omitempty"`
	Voice      *Voice             `json:"voice,omitempty"`
}

// SessionInfo is the PATCH /sessions/{sid} request/response body.
type SessionInfo struct {
	Resuming bool `json:"resuming"`
	Timeout  int  `json:"timeout"`
}
