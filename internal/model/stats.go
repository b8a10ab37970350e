package model

// FrameStats is only present when Lavalink's audio frame loop is tracked,
// which this node does not implement; Stats.FrameStats is always nil.
type FrameStats struct {
	Sent   uint64 `json:"sent"`
	Nulled uint32 `json:"nulled"`
	Deficit int32 `json:"deficit"`
}

type Cpu struct {
	Cores         int     `json:"cores"`
	SystemLoad    float64 `json:"systemLoad"`
	LavalinkLoad  float64 `json:"lavalinkLoad"`
}

type Memory struct {
	Free       uint64 `json:"free"`
	Used       uint64 `json:"used"`
	Allocated  uint64 `json:"allocated"`
	Reservable uint64 `json:"reservable"`
}

type Stats struct {
	Op             string      `json:"op"`
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         Memory      `json:"memory"`
	Cpu            Cpu         `json:"cpu"`
	FrameStats     *FrameStats `json:"frameStats,omitempty"`
}

type Ready struct {
	Op        string `json:"op"`
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

type PlayerUpdate struct {
	Op      string      `json:"op"`
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}
