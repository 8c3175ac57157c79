package wizard

import (
	"testing"
	"time"
)

func TestTTLCacheReturnsFreshEntries(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := NewTTLCache[string](10*time.Minute, WithCacheClock[string](func() time.Time { return current }))

	cache.Put("12", "fields")
	if value, ok := cache.Get("12"); !ok || value != "fields" {
		t.Fatalf("expected immediate read to hit, got %q (%v)", value, ok)
	}
}

func TestTTLCacheExpiredEntryIsAbsent(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := NewTTLCache[string](10*time.Minute, WithCacheClock[string](func() time.Time { return current }))

	cache.Put("12", "fields")

	current = current.Add(10*time.Minute - time.Second)
	if _, ok := cache.Get("12"); !ok {
		t.Fatal("entry one second before expiry must still hit")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("12"); ok {
		t.Fatal("entry past expiry must read as absent, not stale")
	}
}

func TestTTLCacheResetDropsEverything(t *testing.T) {
	cache := NewTTLCache[int](10 * time.Minute)
	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Reset()
	if _, ok := cache.Get("a"); ok {
		t.Fatal("expected reset cache to be empty")
	}
}

func TestTTLCacheIgnoresBlankKeys(t *testing.T) {
	cache := NewTTLCache[int](10 * time.Minute)
	cache.Put("  ", 1)
	if _, ok := cache.Get("  "); ok {
		t.Fatal("blank keys must not be stored")
	}
}
