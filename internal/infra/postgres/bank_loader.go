package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"career-check-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader loads question bank JSONB from Postgres.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context, bankID string) (domain.BankDocument, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE id=$1`, bankID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BankDocument{}, fmt.Errorf("%w: %s", domain.ErrBankNotFound, bankID)
	}
	if err != nil {
		return domain.BankDocument{}, fmt.Errorf("load bank: %w", err)
	}
	var doc domain.BankDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.BankDocument{}, fmt.Errorf("unmarshal bank: %w", err)
	}
	if doc.ID == "" {
		doc.ID = bankID
	}
	return doc, nil
}
