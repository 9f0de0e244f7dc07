package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"career-check-service/internal/domain"
)

// Session drives one user through landing -> questions -> result.
// Transitions are serialized by mu, so concurrent answers apply one after
// another in lock order and never interleave.
type Session struct {
	id   string
	bank *domain.QuestionBank
	topN int
	now  func() time.Time

	mu          sync.Mutex
	screen      domain.Screen
	index       int
	scores      domain.ScoreState
	answers     []domain.AnswerValue
	ranking     []domain.RankedEntry
	updatedAt   time.Time
	subscribers map[chan domain.View]struct{}
}

// NewSession creates a session on the landing screen. topN <= 0 highlights every role.
func NewSession(id string, bank *domain.QuestionBank, topN int) *Session {
	return NewSessionWithClock(id, bank, topN, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, bank *domain.QuestionBank, topN int, now func() time.Time) *Session {
	return &Session{
		id:          id,
		bank:        bank,
		topN:        topN,
		now:         now,
		screen:      domain.ScreenLanding,
		scores:      domain.NewScoreState(bank.Roles()),
		updatedAt:   now(),
		subscribers: make(map[chan domain.View]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// BankID returns the ID of the bank the session runs on.
func (s *Session) BankID() string { return s.bank.ID() }

// Start begins a fresh run from the landing or result screen.
func (s *Session) Start() (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screen == domain.ScreenAsking {
		return s.rejectLocked("start", domain.ScreenAsking)
	}
	s.resetLocked()
	s.screen = domain.ScreenAsking
	return s.broadcastLocked(), nil
}

// Retry restarts the quiz from the result screen.
func (s *Session) Retry() (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screen != domain.ScreenResult {
		return s.rejectLocked("retry", s.screen)
	}
	s.resetLocked()
	s.screen = domain.ScreenAsking
	return s.broadcastLocked(), nil
}

// BackToLanding abandons the current run. Allowed from every screen.
func (s *Session) BackToLanding() domain.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.screen = domain.ScreenLanding
	return s.broadcastLocked()
}

// Answer applies value to the current question and advances.
func (s *Session) Answer(value domain.AnswerValue) (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerLocked(value)
}

// AnswerAt answers only if index is still the current question. A repeated
// click that arrives after the first one advanced the session is rejected.
func (s *Session) AnswerAt(index int, value domain.AnswerValue) (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screen == domain.ScreenAsking && index != s.index {
		err := fmt.Errorf("%w: answer for question %d while on question %d", domain.ErrInvalidTransition, index, s.index)
		log.Printf("session %s: %v", s.id, err)
		return s.snapshotLocked(), err
	}
	return s.answerLocked(value)
}

func (s *Session) answerLocked(value domain.AnswerValue) (domain.View, error) {
	if s.screen != domain.ScreenAsking {
		return s.rejectLocked("answer", s.screen)
	}
	switch value {
	case domain.AnswerYes, domain.AnswerNo, domain.AnswerSkip:
	default:
		return s.snapshotLocked(), fmt.Errorf("%w: %q", domain.ErrInvalidAnswer, value)
	}

	question, err := s.bank.Get(s.index)
	if err != nil {
		// The index no longer matches the bank; the run cannot continue.
		log.Printf("session %s: %v, returning to landing", s.id, err)
		s.resetLocked()
		s.screen = domain.ScreenLanding
		return s.broadcastLocked(), err
	}

	s.scores = domain.Apply(s.scores, question, value)
	s.answers = append(s.answers, value)
	if s.index+1 < s.bank.Count() {
		s.index++
	} else {
		s.screen = domain.ScreenResult
		s.ranking = domain.Rank(s.scores, s.bank.Roles())
	}
	return s.broadcastLocked(), nil
}

// View returns the current render snapshot.
func (s *Session) View() domain.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Scores returns a copy of the accumulated per-role scores.
func (s *Session) Scores() domain.ScoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores.Clone()
}

// Answers returns the answers given so far in the current run.
func (s *Session) Answers() []domain.AnswerValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnswerValue(nil), s.answers...)
}

// LastActive reports when the session last changed state.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Subscribe returns a channel that receives a view after every transition,
// starting with the current one. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.View, func()) {
	ch := make(chan domain.View, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// ch is new and empty, so this cannot block. Sending under mu keeps the
	// initial view ahead of any later broadcast.
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) resetLocked() {
	s.index = 0
	s.scores = domain.NewScoreState(s.bank.Roles())
	s.answers = nil
	s.ranking = nil
}

func (s *Session) rejectLocked(op string, screen domain.Screen) (domain.View, error) {
	err := fmt.Errorf("%w: %s on %s screen", domain.ErrInvalidTransition, op, screen)
	log.Printf("session %s: %v", s.id, err)
	return s.snapshotLocked(), err
}

func (s *Session) broadcastLocked() domain.View {
	s.updatedAt = s.now()
	view := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Subscriber is behind; replace its oldest view so it converges on the latest.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}

func (s *Session) snapshotLocked() domain.View {
	total := s.bank.Count()
	view := domain.View{
		SessionID: s.id,
		BankID:    s.bank.ID(),
		Title:     s.bank.Title(),
		Screen:    s.screen,
		Index:     s.index,
		Total:     total,
		UpdatedAt: s.updatedAt,
	}

	switch s.screen {
	case domain.ScreenLanding:
		view.Lead = s.bank.Lead()
	case domain.ScreenAsking:
		view.Progress = s.index * 100 / total
		if q, err := s.bank.Get(s.index); err == nil {
			view.Question = &domain.QuestionView{ID: q.ID, Text: q.Text}
		}
	case domain.ScreenResult:
		view.Index = total
		view.Progress = 100
		view.Ranking = append([]domain.RankedEntry(nil), s.ranking...)
		view.MatchRate = domain.MatchRate(s.ranking, s.bank.MaxAttainable())
		for i, entry := range domain.Top(s.ranking, s.topN) {
			highlight := domain.Highlight{Rank: i + 1, RankedEntry: entry, Label: string(entry.Role)}
			if profile, ok := s.bank.Profile(entry.Role); ok {
				highlight.Label = profile.Label
				highlight.Description = profile.Description
				highlight.NextSteps = profile.NextSteps
			}
			view.Highlights = append(view.Highlights, highlight)
		}
	}
	return view
}
