package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"career-check-service/internal/domain"
	"career-check-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches bank documents from a backing store (catalog, YAML dir, Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.BankDocument, error)
}

// BankRepository caches bank documents in Redis and falls back to a loader on cache miss.
// Documents are stored as JSON: SET bank:{bankID} {json} EX ttl
// Decoded banks are kept in process and reused while the Redis payload is unchanged.
type BankRepository struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu      sync.Mutex
	decoded map[string]decodedBank
}

type decodedBank struct {
	raw  string
	bank *domain.QuestionBank
}

func NewBankRepository(client *redis.Client, loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client:  client,
		loader:  loader,
		ttl:     ttl,
		decoded: make(map[string]decodedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (*domain.QuestionBank, error) {
	if bank, ok := r.cached(ctx, bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.cached(ctx, bankID); ok {
			return bank, nil
		}

		doc, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return nil, err
		}
		// Validate before caching so a broken document never reaches other instances.
		bank, err := memory.BuildBank(doc)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		if err := r.client.Set(ctx, r.key(bankID), raw, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("bank %s: cache write failed: %v", bankID, err)
		}
		r.remember(bankID, string(raw), bank)
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.QuestionBank), nil
}

// cached returns the bank for the current Redis payload, decoding it only when
// the payload differs from the one last seen.
func (r *BankRepository) cached(ctx context.Context, bankID string) (*domain.QuestionBank, bool) {
	raw, err := r.client.Get(ctx, r.key(bankID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("bank %s: cache read failed: %v", bankID, err)
		}
		return nil, false
	}

	r.mu.Lock()
	entry, ok := r.decoded[bankID]
	r.mu.Unlock()
	if ok && entry.raw == raw {
		return entry.bank, true
	}

	var doc domain.BankDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		log.Printf("bank %s: dropping undecodable cache entry: %v", bankID, err)
		return nil, false
	}
	bank, err := domain.NewQuestionBank(doc)
	if err != nil {
		log.Printf("bank %s: dropping invalid cache entry: %v", bankID, err)
		return nil, false
	}
	r.remember(bankID, raw, bank)
	return bank, true
}

func (r *BankRepository) remember(bankID, raw string, bank *domain.QuestionBank) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoded[bankID] = decodedBank{raw: raw, bank: bank}
}

func (r *BankRepository) key(bankID string) string {
	return "bank:" + bankID
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
