package models

// ParticipantStats is one row of the admin overview.
type ParticipantStats struct {
	Participant Participant `json:"participant"`
	Session     *Session    `json:"session"`
	AnswerCount int         `json:"answer_count"`
	Online      bool        `json:"is_online"`
}

// ExportBundle is the full unfiltered content of every collection.
type ExportBundle struct {
	Users    []Participant `json:"users"`
	Sessions []Session     `json:"sessions"`
	Answers  []Answer      `json:"answers"`
	Logs     []ActivityLog `json:"logs"`
}

// FullState is everything a client needs to resume.
type FullState struct {
	Profile     Participant `json:"profile"`
	Session     *Session    `json:"session"`
	Answers     []Answer    `json:"answers"`
	ResumeIndex int         `json:"resume_index"`
}

type AuthResult struct {
	Profile     Participant `json:"profile"`
	HasProgress bool        `json:"has_progress"`
}

// SeedReport summarizes one reconciliation pass.
type SeedReport struct {
	Created  []string `json:"created,omitempty"`
	Migrated []string `json:"migrated,omitempty"`
	Merged   []string `json:"merged,omitempty"`
	Updated  []string `json:"updated,omitempty"`
}

// Writes is the number of records the pass changed.
func (r SeedReport) Writes() int {
	return len(r.Created) + len(r.Migrated) + len(r.Merged) + len(r.Updated)
}
