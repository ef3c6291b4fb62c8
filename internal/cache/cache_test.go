package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestVectorKey(t *testing.T) {
	a := VectorKey("ollama", "nomic-embed-text", "rest period")
	b := VectorKey("ollama", "nomic-embed-text", "rest period")
	c := VectorKey("openai", "nomic-embed-text", "rest period")
	d := VectorKey("ollama", "nomic-embed-textrest", " period")

	if a != b {
		t.Error("Expected identical keys for identical input")
	}
	if a == c || a == d {
		t.Error("Expected distinct keys across providers and field boundaries")
	}
	if !strings.HasPrefix(a, "regdiff:v1:") {
		t.Errorf("Unexpected key prefix: %s", a)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got, err := DecodeVector(EncodeVector(v))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("Index %d: expected %v, got %v", i, v[i], got[i])
		}
	}

	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated vector")
	}
	if _, err := DecodeVector(nil); err == nil {
		t.Error("Expected error for empty vector")
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := VectorKey("ollama", "m", "text")

	if err := c.Set(key, []byte("value"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(key)
	if !ok || string(got) != "value" {
		t.Errorf("Expected cached value, got %q (found=%v)", got, ok)
	}

	hash := strings.TrimPrefix(key, "regdiff:v1:")
	if _, err := os.Stat(filepath.Join(dir, hash[:2], hash+".vec")); err != nil {
		t.Errorf("Expected sharded record file: %v", err)
	}
	if tmps, _ := filepath.Glob(filepath.Join(dir, hash[:2], ".tmp-*")); len(tmps) != 0 {
		t.Errorf("Expected temp files to be cleaned up, got %v", tmps)
	}

	if err := c.Delete(key); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("Delete of missing key should not fail: %v", err)
	}
}

func TestDiskCache_Expired(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set("k1", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get("k1"); ok {
		t.Error("Expected expired entry to miss")
	}
	if _, err := os.Stat(filepath.Join(dir, "k1", "k1.vec")); !os.IsNotExist(err) {
		t.Error("Expected expired entry to be removed")
	}
}

func TestDiskCache_NoExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), 0)
	c.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }

	if err := c.Set("k1", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	c.now = func() time.Time { return time.Date(2090, 1, 1, 0, 0, 0, 0, time.UTC) }
	if _, ok := c.Get("k1"); !ok {
		t.Error("Expected record without TTL to survive")
	}
}

func TestDiskCache_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	path := c.path("k1")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"data":"djE="}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("k1"); ok {
		t.Error("Expected corrupt record to miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected corrupt record to be removed")
	}
}

func TestDiskCache_Path(t *testing.T) {
	c := NewDiskCache("root", time.Hour)
	tests := []struct{ key, want string }{
		{"regdiff:v1:abcdef", filepath.Join("root", "ab", "abcdef.vec")},
		{"k", filepath.Join("root", "_", "k.vec")},
		{"a/b:", filepath.Join("root", "_", "_.vec")},
	}
	for _, tt := range tests {
		if got := c.path(tt.key); got != tt.want {
			t.Errorf("path(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Hour)
	if err := disk.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("Expected disk hit, got %q", got)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Errorf("Expected promoted memory hit, got %q", got)
	}
}
