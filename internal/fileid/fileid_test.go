package fileid

import (
	"testing"
	"time"
)

func TestSourceKey(t *testing.T) {
	mtime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	id1 := SourceKey("/in/clients.csv", 100, mtime)
	id2 := SourceKey("/in/clients.csv", 100, mtime)
	if id1 != id2 {
		t.Errorf("same file version should give same key: %q vs %q", id1, id2)
	}
	if id1[:len(prefix)] != prefix {
		t.Errorf("key should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+64 {
		t.Errorf("unexpected key length: %q", id1)
	}
}

func TestSourceKey_changes(t *testing.T) {
	mtime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	base := SourceKey("/in/clients.csv", 100, mtime)
	tests := []struct {
		name string
		key  string
	}{
		{"different path", SourceKey("/in/other.csv", 100, mtime)},
		{"different size", SourceKey("/in/clients.csv", 101, mtime)},
		{"different mtime", SourceKey("/in/clients.csv", 100, mtime.Add(time.Second))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key == base {
				t.Errorf("expected a different key, got %q", tt.key)
			}
		})
	}
}

func TestSourceKey_normalized(t *testing.T) {
	mtime := time.Unix(0, 0)
	if SourceKey("/in/./clients.csv", 1, mtime) != SourceKey("/in/clients.csv", 1, mtime) {
		t.Error("cleaned paths should give the same key")
	}
}
