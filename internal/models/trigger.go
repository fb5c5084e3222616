package models

import "time"

// TriggerEvent is published once per recognized physical gesture while the
// trigger feature is listening.
type TriggerEvent struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// EnableOutcome is the resolution of a trigger enable/disable request.
type EnableOutcome string

const (
	// EnableUnavailable means no lifecycle scope is bound, so the request
	// was not applied.
	EnableUnavailable EnableOutcome = "unavailable"
	// EnableDeleteFailed means the request was applied but the existing log
	// could not be removed first.
	EnableDeleteFailed EnableOutcome = "delete-failed"
	EnableSuccess      EnableOutcome = "success"
)

// TriggerStatus is a snapshot of the trigger feature for the HTTP bridge.
type TriggerStatus struct {
	State       string `json:"state"`
	Source      string `json:"source"`
	ScopeBound  bool   `json:"scope_bound"`
	ScopeActive bool   `json:"scope_active"`
}
