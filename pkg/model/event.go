package model

import "time"

// Event kinds written to the local operation journal.
const (
	EventJoin              = "join"
	EventJoinFailed        = "join_failed"
	EventAgentLaunch       = "agent_launch"
	EventAgentLaunchFailed = "agent_launch_failed"
	EventCreate            = "create"
	EventDelete            = "delete"
)

// Event captures one operation performed from this host.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
