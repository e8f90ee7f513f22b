package domain

import "context"

// HistoryRepository persists the outfit history shown to a session.
type HistoryRepository interface {
	Append(ctx context.Context, entry HistoryEntry) error
	ListRecent(ctx context.Context, namespace string, limit int) ([]HistoryEntry, error)
}

// EventPublisher notifies downstream consumers about produced outfits.
type EventPublisher interface {
	Publish(ctx context.Context, event OutfitEvent) error
}
