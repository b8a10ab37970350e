package model

// Outbound envelope op tags.
const (
	OpReady        = "ready"
	OpPlayerUpdate = "playerUpdate"
	OpStats        = "stats"
	OpEvent        = "event"
)
