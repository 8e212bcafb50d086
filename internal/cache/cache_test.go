package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCategoryKeyNormalizes(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{query: "Just Chatting", want: KeyCategorySearch + "just chatting"},
		{query: "  just   CHATTING ", want: KeyCategorySearch + "just chatting"},
		{query: "", want: KeyCategorySearch},
	}
	for _, tt := range tests {
		if got := CategoryKey(tt.query); got != tt.want {
			t.Fatalf("CategoryKey(%q)=%q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c := Disabled(zerolog.Nop())
	ctx := context.Background()

	if c.IsAvailable() {
		t.Fatal("disabled cache reports available")
	}
	if err := c.SetCategories(ctx, "chess", []CachedCategory{{ID: "1", Name: "Chess"}}); err != nil {
		t.Fatalf("SetCategories: %v", err)
	}
	if _, ok := c.GetCategories(ctx, "chess"); ok {
		t.Fatal("disabled cache returned a hit")
	}
	if err := c.InvalidateChannel(ctx, "123"); err != nil {
		t.Fatalf("InvalidateChannel: %v", err)
	}
	if err := c.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNilCacheIsUnavailable(t *testing.T) {
	var c *Cache
	if c.IsAvailable() {
		t.Fatal("nil cache reports available")
	}
}

func TestNewFallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	start := time.Now()
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.IsAvailable() {
		t.Fatal("expected cache to be disabled")
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("fallback took too long")
	}
}
