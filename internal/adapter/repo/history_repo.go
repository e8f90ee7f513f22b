package repo

import (
	"context"
	"fmt"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
	"makemyoutfit/internal/sqlinline"
)

// HistoryRepositoryPG implements domain.HistoryRepository using PostgreSQL.
// db is normally an *infra.SQLRunner wrapping the pool.
type HistoryRepositoryPG struct {
	db infra.SQLExecutor
}

func NewHistoryRepository(db infra.SQLExecutor) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{db: db}
}

// EnsureSchema creates the history table when missing.
func (r *HistoryRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QEnsureOutfitHistory); err != nil {
		return fmt.Errorf("ensure outfit_history: %w", err)
	}
	return nil
}

func (r *HistoryRepositoryPG) Append(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertOutfitHistory,
		entry.ID,
		entry.OutfitID,
		entry.Namespace,
		string(entry.Kind),
		entry.PromptText,
		entry.RevisionText,
		entry.ImageURL,
		string(entry.Delivery),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outfit history: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries of namespace first.
func (r *HistoryRepositoryPG) ListRecent(ctx context.Context, namespace string, limit int) ([]domain.HistoryEntry, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListOutfitHistory, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("list outfit history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e        domain.HistoryEntry
			kind     string
			delivery string
		)
		if err := rows.Scan(&e.ID, &e.OutfitID, &e.Namespace, &kind, &e.PromptText, &e.RevisionText, &e.ImageURL, &delivery, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outfit history: %w", err)
		}
		e.Kind = domain.HistoryKind(kind)
		e.Delivery = domain.Delivery(delivery)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ domain.HistoryRepository = (*HistoryRepositoryPG)(nil)
