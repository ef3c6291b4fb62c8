// Package digest derives content identifiers for inputs and results so that
// two runs can be compared without diffing their payloads.
package digest

import (
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/ppiankov/regdiff/internal/model"
)

// Bytes returns a CIDv1 string using the "raw" multicodec and a sha2-256 multihash
func Bytes(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// Only reachable with an invalid code or length
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// Sections digests a section mapping. Keys are sorted by the JSON encoder and
// every section carries its key as ID, so equal mappings give equal digests.
func Sections(sections model.Sections) (string, error) {
	data, err := json.Marshal(sections.Stamped())
	if err != nil {
		return "", fmt.Errorf("marshal sections: %w", err)
	}
	return Bytes(data), nil
}

// Changes digests an ordered change list
func Changes(changes []model.Change) (string, error) {
	if changes == nil {
		changes = []model.Change{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("marshal changes: %w", err)
	}
	return Bytes(data), nil
}

// Verify reports whether data hashes to the given CID string
func Verify(id string, data []byte) (bool, error) {
	c, err := cid.Decode(id)
	if err != nil {
		return false, fmt.Errorf("decode cid: %w", err)
	}
	sum, err := c.Prefix().Sum(data)
	if err != nil {
		return false, fmt.Errorf("hash data: %w", err)
	}
	return sum.Equals(c), nil
}
