package memory

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"career-check-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches raw bank documents from a backing store (catalog, YAML dir, Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.BankDocument, error)
}

// BankRepository caches validated banks with TTL to avoid repeated loads.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      *domain.QuestionBank
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (*domain.QuestionBank, error) {
	if bank, ok := r.cached(bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		if bank, ok := r.cached(bankID); ok {
			return bank, nil
		}

		doc, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return nil, err
		}
		bank, err := BuildBank(doc)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[bankID] = cachedBank{
			bank:      bank,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.QuestionBank), nil
}

func (r *BankRepository) cached(bankID string) (*domain.QuestionBank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[bankID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.bank, true
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

// BuildBank validates doc and warns about questions that can never score.
func BuildBank(doc domain.BankDocument) (*domain.QuestionBank, error) {
	bank, err := domain.NewQuestionBank(doc)
	if err != nil {
		return nil, err
	}
	for _, id := range bank.InertQuestions() {
		log.Printf("bank %s: question %s awards no points to any role", bank.ID(), id)
	}
	return bank, nil
}

// StaticBankLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticBankLoader struct {
	banks map[string]domain.BankDocument
}

func NewStaticBankLoader(banks map[string]domain.BankDocument) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, bankID string) (domain.BankDocument, error) {
	if doc, ok := l.banks[bankID]; ok {
		return doc, nil
	}
	return domain.BankDocument{}, domain.ErrBankNotFound
}
