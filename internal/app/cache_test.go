package app

import (
	"context"
	"testing"
)

// The cache is optional: every handler path, including booking cancellation,
// calls it unconditionally and must survive a nil cache or nil client.
func TestAvailabilityCacheNilSafe(t *testing.T) {
	ctx := context.Background()

	var nilCache *AvailabilityCache
	nilCache.Invalidate(ctx, "h1", nil)
	nilCache.Set(ctx, "h1", 14, 30, nil)
	if _, ok := nilCache.Get(ctx, "h1", 14, 30); ok {
		t.Fatal("nil cache reported a hit")
	}

	noClient := &AvailabilityCache{}
	noClient.Invalidate(ctx, "h1", nil)
	noClient.Set(ctx, "h1", 14, 30, nil)
	if _, ok := noClient.Get(ctx, "h1", 14, 30); ok {
		t.Fatal("clientless cache reported a hit")
	}
}

func TestAvailabilityCacheKey(t *testing.T) {
	c := &AvailabilityCache{}
	if got := c.key("h1", 14, 30); got != "availability:h1:14:30" {
		t.Fatalf("unexpected key %q", got)
	}
}
