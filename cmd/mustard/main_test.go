package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/mustard/internal/config"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("mustard %v: %v", args, err)
	}
	return out.String()
}

func TestNormalizeCommand(t *testing.T) {
	if got := run(t, "", "normalize", "9pm,", "9:30am"); got != "09:30 21:00\n" {
		t.Fatalf("normalize = %q", got)
	}
}

func TestNextCommand(t *testing.T) {
	// 2026-10-19 is a Monday.
	got := run(t, "", "next", "--at", "2026-10-19T20:00:00Z", "mon=9pm", "thu=19:00")
	if got != "Today 21:00\tin 1h0m0s\n" {
		t.Fatalf("next = %q", got)
	}

	got = run(t, "", "next", "--at", "2026-10-19T20:00:00Z", "-n", "3", "mon=9pm", "thu=19:00")
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "Thursday 19:00") || !strings.HasPrefix(lines[2], "Next Monday 21:00") {
		t.Fatalf("upcoming = %q", got)
	}
	nextCount = 1
}

func TestParseWeekArgs(t *testing.T) {
	w, err := parseWeekArgs([]string{"Monday=9pm", "mon=8:30am", "SAT=noonish 12"})
	if err != nil {
		t.Fatalf("parseWeekArgs: %v", err)
	}
	if w[1] != "08:30 21:00" || w[6] != "12:00" {
		t.Fatalf("week = %q", w)
	}

	for _, bad := range []string{"mon", "xx=9pm", "mo=9pm"} {
		if _, err := parseWeekArgs([]string{bad}); err == nil {
			t.Fatalf("parseWeekArgs(%q) succeeded", bad)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	got := run(t, strings.Repeat("abc ", 10)+"\n", "split", "--runes", "20")
	if strings.Count(got, "--- ") != 2 {
		t.Fatalf("split = %q", got)
	}
	if !strings.HasPrefix(got, "--- 1/2") {
		t.Fatalf("split header = %q", got)
	}
	splitRunes = 0
}

func TestSetupsYAMLRoundTrip(t *testing.T) {
	doc := `setups:
  - category: Just Chatting
    title: " morning coffee "
    tags: [chat, chat, english]
    tweet: coffee time
  - category: Software and Game Development
    category_id: "1469308723"
    title: building mustard
`
	setups, err := readSetups(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("readSetups: %v", err)
	}
	if len(setups) != 2 || setups[0].Title != "morning coffee" || strings.Join(setups[0].Tags, ",") != "chat,english" {
		t.Fatalf("setups = %+v", setups)
	}

	var buf bytes.Buffer
	if err := writeSetups(&buf, setups); err != nil {
		t.Fatalf("writeSetups: %v", err)
	}
	again, err := readSetups(&buf)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if len(again) != 2 || again[1].CategoryID != "1469308723" {
		t.Fatalf("round trip = %+v", again)
	}
}

func TestReadSetupsRejects(t *testing.T) {
	tests := []string{
		"setups:\n  - tweet: only a tweet\n",
		"setups:\n  - title: x\n    colour: red\n",
	}
	for _, doc := range tests {
		if _, err := readSetups(strings.NewReader(doc)); err == nil {
			t.Fatalf("readSetups accepted %q", doc)
		}
	}

	empty, err := readSetups(strings.NewReader(""))
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty doc = %v, %v", empty, err)
	}
}

func TestFlushCacheUnreachable(t *testing.T) {
	var out bytes.Buffer
	err := flushCache(context.Background(), &out, &config.Config{RedisAddr: "127.0.0.1:1"}, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Fatalf("flushCache err = %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output %q", out.String())
	}
}
