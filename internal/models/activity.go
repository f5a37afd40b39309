package models

import "time"

type ActivityAction string

const (
	ActionLogin      ActivityAction = "LOGIN"
	ActionResume     ActivityAction = "RESUME"
	ActionPause      ActivityAction = "PAUSE"
	ActionComplete   ActivityAction = "COMPLETE"
	ActionAdminReset ActivityAction = "ADMIN_RESET"
)

// SystemParticipantID owns audit entries that are not about one participant.
const SystemParticipantID = "SYSTEM"

type ActivityLog struct {
	ID            string         `json:"id"`
	ParticipantID string         `json:"participant_id"`
	Action        ActivityAction `json:"action"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
