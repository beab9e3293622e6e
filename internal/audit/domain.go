package audit

import "time"

// Outcome marks whether the audited action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is an immutable audit record. The actor name is a captured string
// and keeps no link to the user row, so it survives user deletion.
type Entry struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	ActorName string    `json:"actor_name"`
	Module    string    `json:"module"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Outcome   Outcome   `json:"outcome"`
}
