package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an atomic write could not be completed after
// the bounded number of internal retries.
var ErrConflict = errors.New("storage conflict")

// ValidationError describes a record rejected at the storage boundary.
// Rejected records are never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Interaction kinds.
const (
	KindChat   = "chat"
	KindResume = "resume"
)

// Interaction is one immutable recorded user event: a chat turn from the
// advisor or a scored resume analysis from the analyzer. Exactly one of
// Chat/Resume is set, matching Kind.
type Interaction struct {
	ID        string    `json:"id"`
	Username  string    `json:"username" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=chat resume"`
	Timestamp time.Time `json:"timestamp" validate:"required"`

	Chat   *ChatTurn       `json:"chat,omitempty" validate:"required_if=Kind chat,excluded_if=Kind resume"`
	Resume *ResumeAnalysis `json:"resume,omitempty" validate:"required_if=Kind resume,excluded_if=Kind chat"`
}

// ChatTurn is one message of an advisor conversation.
type ChatTurn struct {
	Role    string   `json:"role" validate:"required,oneof=user assistant"`
	Message string   `json:"message" validate:"required"`
	Topics  []string `json:"topics,omitempty"`
}

// ResumeAnalysis is one already-scored resume submission. Parsing and scoring
// happen in the analyzer service; only the verdict is recorded here.
type ResumeAnalysis struct {
	Score      float64 `json:"score" validate:"min=0,max=100"`
	TargetRole string  `json:"target_role,omitempty"`
	Feedback   string  `json:"feedback,omitempty"`
}

// Trait sources recorded on a synthesized profile.
const (
	TraitSourceModel    = "model"    // scored by the external judgment call
	TraitSourceFallback = "fallback" // carried over from the previous profile
	TraitSourceDefault  = "default"  // neutral defaults, no prior profile
)

// Improvement trend labels.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// Traits holds Big-Five style personality scores, each in [0,1].
type Traits struct {
	Openness           float64 `json:"openness"`
	Conscientiousness  float64 `json:"conscientiousness"`
	Extraversion       float64 `json:"extraversion"`
	Agreeableness      float64 `json:"agreeableness"`
	EmotionalStability float64 `json:"emotional_stability"`
}

// Communication captures how the user writes.
type Communication struct {
	Formality        string `json:"formality"`         // "formal" or "casual"
	Verbosity        string `json:"verbosity"`         // "concise", "moderate", "detailed"
	QuestioningStyle string `json:"questioning_style"` // "exploratory" or "direct"
}

// ResumeInsights summarizes a user's resume analyses over time.
type ResumeInsights struct {
	TotalAnalyses    int      `json:"total_analyses"`
	AverageScore     float64  `json:"average_score"`
	LatestScore      float64  `json:"latest_score"`
	ImprovementTrend string   `json:"improvement_trend"`
	TargetRoles      []string `json:"target_roles"`
}

// Recommendations groups actionable suggestions derived from a profile.
type Recommendations struct {
	LearningStyle    []string `json:"learning_style"`
	CareerGuidance   []string `json:"career_guidance"`
	SkillDevelopment []string `json:"skill_development"`
}

// Profile is the synthesized personality/preference snapshot for one user.
// It is overwritten wholesale on each synthesis run; Revision increments on
// every put.
type Profile struct {
	Username          string            `json:"username"`
	Revision          int64             `json:"revision"`
	UpdatedAt         time.Time         `json:"updated_at"`
	TotalInteractions int               `json:"total_interactions"`
	DataAvailable     bool              `json:"data_available"`
	TraitSource       string            `json:"trait_source"`
	Traits            Traits            `json:"personality_traits"`
	Communication     Communication     `json:"communication_style"`
	Topics            []string          `json:"topics_of_interest"`
	Skills            map[string]string `json:"skill_levels"`
	Resume            ResumeInsights    `json:"resume_insights"`
	Recommendations   Recommendations   `json:"recommendations"`
}

// Stats is the lightweight per-user view served without running synthesis.
type Stats struct {
	Username          string `json:"username"`
	TotalInteractions int    `json:"total_interactions"`
	TotalChatTurns    int    `json:"total_chat_turns"`
	TotalAnalyses     int    `json:"total_analyses"`
}
