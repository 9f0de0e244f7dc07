package app

import (
	"context"
	"log"

	"career-check-service/internal/domain"
)

// SessionRepository abstracts how live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(sessionID string, create func() *Session) *Session
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// BankRepository loads validated question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (*domain.QuestionBank, error)
}

// CareerService contains the career check use cases. Every session is an
// independent state machine; the service only routes calls to it.
type CareerService struct {
	sessions SessionRepository
	banks    BankRepository
	topN     int
}

func NewCareerService(sessions SessionRepository, banks BankRepository, topN int) *CareerService {
	return &CareerService{sessions: sessions, banks: banks, topN: topN}
}

// Open attaches to sessionID, creating it on bankID if it does not exist yet.
// An existing session on a different bank is replaced.
func (s *CareerService) Open(ctx context.Context, sessionID, bankID string) (domain.View, error) {
	bank, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return domain.View{}, err
	}

	if existing, ok := s.sessions.Get(sessionID); ok && existing.BankID() != bank.ID() {
		log.Printf("session %s: switching bank %s -> %s", sessionID, existing.BankID(), bank.ID())
		s.sessions.Delete(sessionID)
	}
	session := s.sessions.GetOrCreate(sessionID, func() *Session {
		return NewSession(sessionID, bank, s.topN)
	})
	return session.View(), nil
}

// Start moves the session to its first question.
func (s *CareerService) Start(_ context.Context, sessionID string) (domain.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.View{}, domain.ErrSessionNotFound
	}
	return session.Start()
}

// Answer records value for the current question. When at is non-nil the answer
// is only applied if at is still the current question index.
func (s *CareerService) Answer(_ context.Context, sessionID string, value domain.AnswerValue, at *int) (domain.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.View{}, domain.ErrSessionNotFound
	}
	if at != nil {
		return session.AnswerAt(*at, value)
	}
	return session.Answer(value)
}

// Retry restarts a finished session.
func (s *CareerService) Retry(_ context.Context, sessionID string) (domain.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.View{}, domain.ErrSessionNotFound
	}
	return session.Retry()
}

// BackToLanding discards the current run and shows the landing screen.
func (s *CareerService) BackToLanding(_ context.Context, sessionID string) (domain.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.View{}, domain.ErrSessionNotFound
	}
	return session.BackToLanding(), nil
}

// View returns the current snapshot without changing state.
func (s *CareerService) View(_ context.Context, sessionID string) (domain.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.View{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}

// Subscribe returns a channel that receives a view after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *CareerService) Subscribe(_ context.Context, sessionID string) (<-chan domain.View, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Close drops the session.
func (s *CareerService) Close(_ context.Context, sessionID string) {
	s.sessions.Delete(sessionID)
}
