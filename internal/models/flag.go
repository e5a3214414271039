package models

import "time"

type FlagType string

const (
	FlagTypeThreat   FlagType = "threat"
	FlagTypeSelfHarm FlagType = "self_harm"
)

// MessageFlag is a moderation record for an anonymous submission. Only the
// matched keywords are stored, never the message text.
type MessageFlag struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	RecipientID string    `json:"recipient_id"`
	IPAddress   string    `json:"ip_address"`
	Type        FlagType  `json:"type"`
	Keywords    []string  `json:"keywords"`
	ActionTaken string    `json:"action_taken"` // "flagged", "blocked"
}
