package domain

import "time"

// QuestionView is what a renderer needs to show a question. Weights stay internal.
type QuestionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Highlight joins a top-N ranked entry with its role profile.
type Highlight struct {
	Rank int `json:"rank"`
	RankedEntry
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	NextSteps   []string `json:"nextSteps,omitempty"`
}

// View is a render snapshot of a career check session.
type View struct {
	SessionID  string        `json:"sessionId"`
	BankID     string        `json:"bankId"`
	Title      string        `json:"title"`
	Lead       string        `json:"lead,omitempty"`
	Screen     Screen        `json:"screen"`
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Progress   int           `json:"progress"`
	Question   *QuestionView `json:"question,omitempty"`
	Ranking    []RankedEntry `json:"ranking,omitempty"`
	MatchRate  int           `json:"matchRate,omitempty"`
	Highlights []Highlight   `json:"highlights,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}
