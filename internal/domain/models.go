package domain

import (
	"fmt"
	"strings"
)

// Role names a candidate outcome category (a job type). The set is closed per bank.
type Role string

// RoleProfile carries the display text for a role. Scoring never reads it.
type RoleProfile struct {
	Role        Role     `json:"key" yaml:"key"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	NextSteps   []string `json:"nextSteps,omitempty" yaml:"next_steps,omitempty"`
}

// Question is a yes/no statement with the points it awards per role on Yes.
type Question struct {
	ID      string       `json:"id" yaml:"id"`
	Text    string       `json:"text" yaml:"text"`
	Weights map[Role]int `json:"weights" yaml:"weights"`
}

// BankDocument is the serialized form of a question bank (YAML catalog, Postgres JSONB).
type BankDocument struct {
	ID        string        `json:"id" yaml:"id"`
	Title     string        `json:"title" yaml:"title"`
	Lead      string        `json:"lead,omitempty" yaml:"lead,omitempty"`
	Roles     []RoleProfile `json:"roles" yaml:"roles"`
	Questions []Question    `json:"questions" yaml:"questions"`
}

// AnswerValue is the user's response to one question.
type AnswerValue string

const (
	AnswerYes  AnswerValue = "yes"
	AnswerNo   AnswerValue = "no"
	AnswerSkip AnswerValue = "skip"
)

// ParseAnswer accepts the long and short spellings of an answer.
// "Rather yes" counts as a full yes.
func ParseAnswer(raw string) (AnswerValue, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "rather-yes", "rather yes", "rather_yes":
		return AnswerYes, nil
	case "no", "n":
		return AnswerNo, nil
	case "skip", "s":
		return AnswerSkip, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAnswer, raw)
}

// Screen is the flow state shown to the user.
type Screen string

const (
	ScreenLanding Screen = "landing"
	ScreenAsking  Screen = "asking"
	ScreenResult  Screen = "result"
)

// ScoreState maps each role to its accumulated raw score.
type ScoreState map[Role]int

// NewScoreState returns an all-zero state for roles.
func NewScoreState(roles []Role) ScoreState {
	state := make(ScoreState, len(roles))
	for _, role := range roles {
		state[role] = 0
	}
	return state
}

// Clone returns an independent copy.
func (s ScoreState) Clone() ScoreState {
	out := make(ScoreState, len(s))
	for role, score := range s {
		out[role] = score
	}
	return out
}

// RankedEntry is one row of a ranked result.
type RankedEntry struct {
	Role            Role `json:"role"`
	RawScore        int  `json:"rawScore"`
	NormalizedScore int  `json:"normalizedScore"`
}
