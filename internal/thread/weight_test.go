package thread

import (
	"strings"
	"testing"
)

func TestWeigh(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		max        int
		wantTotal  int
		wantPrefix int
	}{
		{name: "ascii fits", text: "hello", max: 10, wantTotal: 5, wantPrefix: 5},
		{name: "ascii over", text: strings.Repeat("a", 281), max: 280, wantTotal: 281, wantPrefix: 280},
		{name: "cjk weighs two", text: "日本語日本語", max: 10, wantTotal: 12, wantPrefix: 5},
		{name: "general punctuation is light", text: "\u2014\u2010", max: 10, wantTotal: 2, wantPrefix: 2},
		{name: "emoji with modifier", text: "a👍🏽", max: 2, wantTotal: 3, wantPrefix: 1},
		{name: "combining mark normalizes", text: "e\u0301", max: 1, wantTotal: 1, wantPrefix: 2},
		{
			name:       "url counts fixed",
			text:       "see https://example.com/a/very/long/path/that/goes/on ok",
			max:        30,
			wantTotal:  30,
			wantPrefix: 56,
		},
		{
			name:       "url does not fit",
			text:       "abcdefghij https://example.com",
			max:        25,
			wantTotal:  34,
			wantPrefix: 11,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, prefix := Weigh(tt.text, tt.max)
			if total != tt.wantTotal || prefix != tt.wantPrefix {
				t.Fatalf("Weigh(%q, %d) = (%d, %d), want (%d, %d)", tt.text, tt.max, total, prefix, tt.wantTotal, tt.wantPrefix)
			}
		})
	}
}

func TestTweetWeightPredicate(t *testing.T) {
	pred := TweetWeight(0)
	if v := pred(strings.Repeat("a", DefaultMaxWeight)); !v.Valid {
		t.Fatalf("expected %d ascii runes to be valid", DefaultMaxWeight)
	}
	v := pred(strings.Repeat("a", DefaultMaxWeight+1))
	if v.Valid || v.ValidPrefix != DefaultMaxWeight {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestSplitWithTweetWeight(t *testing.T) {
	text := strings.Repeat("going live soon with a new build ", 20)
	segments, err := Split(text, TweetWeight(DefaultMaxWeight))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for _, s := range segments[:len(segments)-1] {
		if !strings.HasSuffix(s.Raw, " ") {
			t.Fatalf("expected a space break, got %q", s.Raw)
		}
	}
}
