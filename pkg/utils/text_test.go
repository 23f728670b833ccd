package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	// five runes, fifteen bytes
	if got := Truncate("ノートです", 4); got != "ノートで..." {
		t.Errorf("got %s", got)
	}
	if got := Truncate("ノート", 4); got != "ノート" {
		t.Errorf("multibyte string within limit should be unchanged, got %s", got)
	}
}
