package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Record layout: magic, expiry as little-endian unix nanoseconds, payload
var recordMagic = []byte("RDV1")

const headerSize = 4 + 8

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DiskCache persists one record file per key under dir, sharded by the
// first two characters of the key hash. Writes go through a temp file and a
// rename, so concurrent workers never read a torn record.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a new disk cache
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the payload of an unexpired record. Expired or corrupt
// records are removed and reported as a miss.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	payload, expires, err := decodeRecord(data)
	if err != nil || (!expires.IsZero() && c.now().After(expires)) {
		_ = os.Remove(path)
		return nil, false
	}
	return payload, true
}

// Set writes value with ttl, or the cache default when ttl is 0. With both
// zero the record never expires.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	var expires time.Time
	if ttl != 0 {
		expires = c.now().Add(ttl)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(encodeRecord(value, expires)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

// Delete removes a value from the disk cache. A missing entry is not an error.
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache file: %w", err)
	}
	return nil
}

// Clear removes all cached files
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// path maps "regdiff:v1:ab12..." to <dir>/ab/ab12....vec
func (c *DiskCache) path(key string) string {
	name := key
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeKeyChars.ReplaceAllString(name, "_")
	if name == "" {
		name = "_"
	}

	shard := "_"
	if len(name) >= 2 {
		shard = name[:2]
	}
	return filepath.Join(c.dir, shard, name+".vec")
}

func encodeRecord(payload []byte, expires time.Time) []byte {
	buf := make([]byte, headerSize+len(payload))
	copy(buf, recordMagic)
	var nanos int64
	if !expires.IsZero() {
		nanos = expires.UnixNano()
	}
	binary.LittleEndian.PutUint64(buf[4:headerSize], uint64(nanos))
	copy(buf[headerSize:], payload)
	return buf
}

var errBadRecord = errors.New("bad cache record")

func decodeRecord(data []byte) ([]byte, time.Time, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], recordMagic) {
		return nil, time.Time{}, errBadRecord
	}
	var expires time.Time
	if nanos := int64(binary.LittleEndian.Uint64(data[4:headerSize])); nanos != 0 {
		expires = time.Unix(0, nanos)
	}
	return data[headerSize:], expires, nil
}
