package policy

import "time"

// Action is what a matched policy does to a migration or packaging item.
type Action string

const (
	// ActionBlock makes a match a blocking reason for the single item.
	ActionBlock Action = "block"
	// ActionWarn makes a match an informational warning; the item proceeds.
	ActionWarn Action = "warn"
)

// Policy is an admin-defined deployment gate: a CEL expression over
// Installer and App facts, plus the action taken when it matches.
type Policy struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Action     Action    `json:"action"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Evaluation is the outcome of evaluating one policy against one item.
type Evaluation struct {
	PolicyID   string
	PolicyName string
	Action     Action
	Matched    bool
	Err        error
}
