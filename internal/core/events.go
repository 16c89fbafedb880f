package core

import "time"

// Event types published after successful writes.
const (
	EventUserSignedUp    = "user.signed_up"
	EventAccountCreated  = "account.created"
	EventBalanceRecorded = "balance.recorded"
)

// EventTypes lists every event type, e.g. for queue bindings.
func EventTypes() []string {
	return []string{EventUserSignedUp, EventAccountCreated, EventBalanceRecorded}
}

// Event describes a change that already happened. Fields that do not apply
// to the event type are left empty.
type Event struct {
	Type          string    `json:"type"`
	Username      string    `json:"username"`
	AccountNumber string    `json:"account_num,omitempty"`
	Period        string    `json:"period,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
