package domain

import (
	"fmt"
	"strconv"
)

// QuestionBank is an immutable, validated, ordered set of questions over a closed role set.
// All getters return copies, so a bank can be shared by any number of sessions.
type QuestionBank struct {
	id        string
	title     string
	lead      string
	roles     []Role
	profiles  map[Role]RoleProfile
	questions []Question
	maxTotal  int
}

// NewQuestionBank validates doc and freezes it into a QuestionBank.
func NewQuestionBank(doc BankDocument) (*QuestionBank, error) {
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("%w %q: no roles declared", ErrInvalidBank, doc.ID)
	}
	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("%w %q: no questions", ErrInvalidBank, doc.ID)
	}

	bank := &QuestionBank{
		id:        doc.ID,
		title:     doc.Title,
		lead:      doc.Lead,
		roles:     make([]Role, 0, len(doc.Roles)),
		profiles:  make(map[Role]RoleProfile, len(doc.Roles)),
		questions: make([]Question, 0, len(doc.Questions)),
	}
	for _, profile := range doc.Roles {
		if profile.Role == "" {
			return nil, fmt.Errorf("%w %q: empty role key", ErrInvalidBank, doc.ID)
		}
		if _, dup := bank.profiles[profile.Role]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRole, profile.Role)
		}
		if profile.Label == "" {
			profile.Label = string(profile.Role)
		}
		profile.NextSteps = append([]string(nil), profile.NextSteps...)
		bank.roles = append(bank.roles, profile.Role)
		bank.profiles[profile.Role] = profile
	}

	for i, q := range doc.Questions {
		id := q.ID
		if id == "" {
			id = "q" + strconv.Itoa(i+1)
		}
		weights := make(map[Role]int, len(q.Weights))
		for role, weight := range q.Weights {
			if _, ok := bank.profiles[role]; !ok {
				return nil, fmt.Errorf("question %s: %w %q", id, ErrUnknownRole, role)
			}
			if weight < 0 {
				return nil, fmt.Errorf("question %s: %w %d for %q", id, ErrNegativeWeight, weight, role)
			}
			weights[role] = weight
		}
		bank.questions = append(bank.questions, Question{ID: id, Text: q.Text, Weights: weights})
	}
	bank.maxTotal = MaxAttainable(bank.questions)
	return bank, nil
}

// ID returns the bank identifier.
func (b *QuestionBank) ID() string { return b.id }

// Title returns the landing title.
func (b *QuestionBank) Title() string { return b.title }

// Lead returns the landing copy.
func (b *QuestionBank) Lead() string { return b.lead }

// Count returns the number of questions.
func (b *QuestionBank) Count() int { return len(b.questions) }

// MaxAttainable returns the best total a single role can reach in this bank.
func (b *QuestionBank) MaxAttainable() int { return b.maxTotal }

// Get returns the question at index.
func (b *QuestionBank) Get(index int) (Question, error) {
	if index < 0 || index >= len(b.questions) {
		return Question{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, len(b.questions))
	}
	q := b.questions[index]
	weights := make(map[Role]int, len(q.Weights))
	for role, weight := range q.Weights {
		weights[role] = weight
	}
	q.Weights = weights
	return q, nil
}

// Roles returns the roles in declaration order. Ranking ties keep this order.
func (b *QuestionBank) Roles() []Role {
	return append([]Role(nil), b.roles...)
}

// Profile looks up the display text for role.
func (b *QuestionBank) Profile(role Role) (RoleProfile, bool) {
	profile, ok := b.profiles[role]
	if !ok {
		return RoleProfile{}, false
	}
	profile.NextSteps = append([]string(nil), profile.NextSteps...)
	return profile, true
}

// InertQuestions lists the IDs of questions that award no points to any role.
func (b *QuestionBank) InertQuestions() []string {
	var ids []string
	for _, q := range b.questions {
		inert := true
		for _, weight := range q.Weights {
			if weight > 0 {
				inert = false
				break
			}
		}
		if inert {
			ids = append(ids, q.ID)
		}
	}
	return ids
}
