package dto

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// EventData is one event in a query response.
type EventData struct {
	SnitchID  int64     `json:"snitch_id"`
	MessageID int64     `json:"message_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryEventsResponse is the body of a successful event query.
type QueryEventsResponse struct {
	Count  int         `json:"count"`
	Events []EventData `json:"events"`
}

// SnitchData is one snitch in a listing response.
type SnitchData struct {
	ID    int64  `json:"id"`
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Name  string `json:"name,omitempty"`
	Group string `json:"group,omitempty"`
}

// ListSnitchesResponse is the body of a snitch listing.
type ListSnitchesResponse struct {
	Count    int          `json:"count"`
	Snitches []SnitchData `json:"snitches"`
}

// ChannelData is one registered channel with its role set.
type ChannelData struct {
	ChannelID     int64   `json:"channel_id"`
	LastIndexedID *int64  `json:"last_indexed_id,omitempty"`
	Everyone      bool    `json:"everyone"`
	RoleIDs       []int64 `json:"role_ids,omitempty"`
}

// ListChannelsResponse is the body of a channel listing / permission report.
type ListChannelsResponse struct {
	Count    int           `json:"count"`
	Channels []ChannelData `json:"channels"`
}

// IndexJobResponse reports a started or joined indexing job.
type IndexJobResponse struct {
	JobID  string `json:"job_id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}
