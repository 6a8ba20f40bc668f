// Package hashchain computes and verifies the content-hash / chain-hash
// invariants that make mnemo's memories and events tamper-evident
// (spec §4.4).
package hashchain

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// ContentHash computes SHA-256(content || agent_id || created_at).
// created_at must be the exact RFC3339 string stored on the record so
// the hash is reproducible from persisted fields alone.
func ContentHash(content, agentID, createdAtRFC3339 string) [32]byte {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte(agentID))
	h.Write([]byte(createdAtRFC3339))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ChainHash computes SHA-256(contentHash || prev) when prev is present,
// else SHA-256(contentHash).
func ChainHash(contentHash [32]byte, prev *[32]byte) [32]byte {
	h := sha256.New()
	h.Write(contentHash[:])
	if prev != nil {
		h.Write(prev[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ConstantTimeEqual compares two hashes without leaking timing
// information about where they first differ.
func ConstantTimeEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// ChainRecord is the minimal shape hashchain needs to verify a chain:
// any record (memory or event) that carries a content hash, an optional
// previous hash, and (for memories) the source fields used to
// recompute the content hash.
type ChainRecord struct {
	ID          string
	ContentHash [32]byte
	PrevHash    [32]byte
	HasPrevHash bool

	// Recompute is set for memory chains, where the content hash can
	// be independently recomputed from persisted fields. Event chains
	// leave this nil, since the hashed source data is
	// operation-specific and not persisted in the event payload
	// (spec §4.4); event verification only checks non-emptiness and
	// linkage.
	Recompute func() [32]byte
}

// VerifyResult is the outcome of verifying a chain of records in
// ascending order.
type VerifyResult struct {
	Valid           bool
	Total           int
	VerifiedCount   int
	FirstBrokenID   string
	Error           string
}

// Verify walks records in ascending order (the order the caller must
// guarantee, typically ascending by created_at / timestamp) and checks
// both the content-hash recomputation (when Recompute is set) and the
// chain linkage to the previous record's content hash.
func Verify(records []ChainRecord) VerifyResult {
	result := VerifyResult{Total: len(records)}
	var prevContentHash [32]byte

	for i, r := range records {
		if r.Recompute != nil {
			recomputed := r.Recompute()
			if !ConstantTimeEqual(recomputed, r.ContentHash) {
				result.Valid = false
				result.FirstBrokenID = r.ID
				result.Error = fmt.Sprintf("content hash mismatch at record %s", r.ID)
				return result
			}
		} else if r.ContentHash == ([32]byte{}) {
			result.Valid = false
			result.FirstBrokenID = r.ID
			result.Error = fmt.Sprintf("empty content hash at record %s", r.ID)
			return result
		}

		if i > 0 {
			if !r.HasPrevHash {
				result.Valid = false
				result.FirstBrokenID = r.ID
				result.Error = fmt.Sprintf("missing prev hash at record %s", r.ID)
				return result
			}
			// PrevHash stores ChainHash(contentHash, predecessor's
			// contentHash), not the bare predecessor hash (spec §4.4 /
			// GLOSSARY "Chain hash"), so linkage must be checked by
			// recomputing that same chain hash, not by comparing
			// against prevContentHash directly.
			expected := ChainHash(r.ContentHash, &prevContentHash)
			if !ConstantTimeEqual(r.PrevHash, expected) {
				result.Valid = false
				result.FirstBrokenID = r.ID
				result.Error = fmt.Sprintf("chain hash mismatch at record %s", r.ID)
				return result
			}
		}

		prevContentHash = r.ContentHash
		result.VerifiedCount++
	}

	result.Valid = true
	return result
}
