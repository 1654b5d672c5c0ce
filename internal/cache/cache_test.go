package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestKey_Deterministic(t *testing.T) {
	a := Key("session-1", "alice", "espresso guide", 20, 0, 10)
	b := Key("session-1", "alice", "espresso guide", 20, 0, 10)
	if a != b {
		t.Errorf("identical inputs produced different keys: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "search:") {
		t.Errorf("key missing namespace prefix: %q", a)
	}
}

func TestKey_DistinctPerParameter(t *testing.T) {
	base := Key("session-1", "alice", "espresso", 20, 0, 10)
	variants := []string{
		Key("session-2", "alice", "espresso", 20, 0, 10),
		Key("session-1", "bob", "espresso", 20, 0, 10),
		Key("session-1", "alice", "latte", 20, 0, 10),
		Key("session-1", "alice", "espresso", 30, 0, 10),
		Key("session-1", "alice", "espresso", 20, 10, 10),
		Key("session-1", "alice", "espresso", 20, 0, 5),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base key", i)
		}
	}
}

func TestKey_NoDelimiterCollision(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must hash differently.
	if Key("ab", "c", "q", 1, 0, 1) == Key("a", "bc", "q", 1, 0, 1) {
		t.Error("field boundary collision")
	}
}

func TestNoop(t *testing.T) {
	var c Noop
	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("noop cache should never hit")
	}
}
