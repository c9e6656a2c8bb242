package testsupport

import (
	"context"
	"testing"
	"time"

	"newshound/internal/config"
	"newshound/internal/storage"
)

// MustOpenStore opens a storage.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSubscription creates an active keyword subscription for tests.
func NewSubscription(t testing.TB, store *storage.Store, name, source, target string) *storage.Subscription {
	t.Helper()

	sub := &storage.Subscription{
		Name:            name,
		Source:          source,
		Type:            storage.SubscriptionKeyword,
		Target:          target,
		FetchInterval:   3600,
		AnalysisEnabled: true,
		DeliveryEnabled: true,
		Status:          storage.SubscriptionActive,
	}
	if err := store.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("store.CreateSubscription: %v", err)
	}
	return sub
}

// NewItem stores a minimal item for tests and returns it with its ID set.
func NewItem(t testing.TB, store *storage.Store, externalID, source string) *storage.Item {
	t.Helper()

	published := time.Now().UTC().Add(-time.Hour)
	item := &storage.Item{
		ExternalID:   externalID,
		Source:       source,
		Title:        "item " + externalID,
		Body:         "body for " + externalID,
		QualityScore: 0.5,
		PublishedAt:  &published,
	}
	if _, err := store.UpsertItem(context.Background(), item); err != nil {
		t.Fatalf("store.UpsertItem: %v", err)
	}
	return item
}
