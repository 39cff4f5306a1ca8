package main

import "testing"

func TestParseFlags(t *testing.T) {
	flags := parseFlags([]string{"--app=abc", "--due=2026-10-15T09:00:00Z", "positional", "--short"})
	if flags["app"] != "abc" {
		t.Errorf("app = %q", flags["app"])
	}
	if flags["due"] != "2026-10-15T09:00:00Z" {
		t.Errorf("due = %q", flags["due"])
	}
	if v, ok := flags["short"]; !ok || v != "" {
		t.Errorf("short = %q, %v", v, ok)
	}
	if _, ok := flags["positional"]; ok {
		t.Error("positional arg parsed as flag")
	}
}

func TestSplitArgs(t *testing.T) {
	date, flags := splitArgs([]string{"--tz=Asia/Tokyo", "2026-10-14", "--exclude=in_progress"})
	if date != "2026-10-14" {
		t.Errorf("date = %q", date)
	}
	if flags["tz"] != "Asia/Tokyo" || flags["exclude"] != "in_progress" {
		t.Errorf("flags = %v", flags)
	}

	date, _ = splitArgs(nil)
	if date != "" {
		t.Errorf("date = %q, want empty", date)
	}
}

func TestIntFlag(t *testing.T) {
	flags := map[string]string{"limit": "5", "bad": "x"}
	if got := intFlag(flags, "limit", 20); got != 5 {
		t.Errorf("limit = %d", got)
	}
	if got := intFlag(flags, "bad", 20); got != 20 {
		t.Errorf("bad = %d", got)
	}
	if got := intFlag(flags, "missing", 20); got != 20 {
		t.Errorf("missing = %d", got)
	}
}
