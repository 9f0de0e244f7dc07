package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"career-check-service/internal/domain"
	"github.com/uptrace/bun"
)

// SeedBanks upserts bank documents into question_banks.
func SeedBanks(ctx context.Context, db *bun.DB, docs []domain.BankDocument) error {
	for _, doc := range docs {
		if _, err := domain.NewQuestionBank(doc); err != nil {
			return fmt.Errorf("seed bank %s: %w", doc.ID, err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal bank %s: %w", doc.ID, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO question_banks (id, data) VALUES (?, ?::jsonb)
			 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			doc.ID, string(data)); err != nil {
			return fmt.Errorf("insert bank %s: %w", doc.ID, err)
		}
	}
	return nil
}
