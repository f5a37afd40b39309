package models

import "time"

type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageFrench  Language = "fr"
	LanguageArabic  Language = "ar"
)

// Languages lists the supported interface languages, English first.
var Languages = []Language{LanguageEnglish, LanguageFrench, LanguageArabic}

// Valid reports whether l is one of Languages.
func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// Participant is a roster identity. The PIN hash never leaves the process.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PINHash   string    `json:"-"`
	Role      Role      `json:"role"`
	Language  Language  `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ParticipantID  string             `json:"participant_id"`
	CurrentSection string             `json:"current_section"`
	CurrentIndex   int                `json:"current_index"`
	StartedAt      time.Time          `json:"started_at"`
	LastActiveAt   time.Time          `json:"last_active_at"`
	TotalTimeSpent float64            `json:"total_time_spent"`
	SectionTimes   map[string]float64 `json:"section_times"`
	IsCompleted    bool               `json:"is_completed"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	LoginCount     int                `json:"login_count"`
	BacktrackCount int                `json:"backtrack_count"`
	BlurCount      int                `json:"blur_count"`
}

type Answer struct {
	ParticipantID string    `json:"participant_id"`
	QuestionID    int       `json:"question_id"`
	Section       string    `json:"section"`
	AnswerText    string    `json:"answer_text"`
	TimeSpent     float64   `json:"time_spent"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProgressUpdate is one atomic save: answer upsert plus session bookkeeping.
type ProgressUpdate struct {
	ParticipantID  string
	QuestionID     int
	Section        string
	AnswerText     string
	ElapsedSeconds float64
	CurrentIndex   int
	At             time.Time
}

// ProgressOutcome tells the caller which branch a progress write took.
type ProgressOutcome int

const (
	ProgressRecorded ProgressOutcome = iota
	ProgressSessionMissing
	ProgressSessionCompleted
)

// Counter names a monotonic session counter.
type Counter string

const (
	CounterBacktrack Counter = "backtrack_count"
	CounterBlur      Counter = "blur_count"
)

// EventKind is a client-reported navigation or focus event.
type EventKind string

const (
	EventBacktrack EventKind = "backtrack"
	EventBlur      EventKind = "blur"
)

// Counter maps the event to the session counter it increments.
func (k EventKind) Counter() (Counter, bool) {
	switch k {
	case EventBacktrack:
		return CounterBacktrack, true
	case EventBlur:
		return CounterBlur, true
	}
	return "", false
}
