// Package audit implements the append-only, hash-chained Request Record
// log (spec §4.8): every finished request is serialized in a canonical
// field order, chained to the previous record's hash, and handed to a
// pluggable Sink. Retention and export are sink concerns; this package
// only guarantees chain integrity and non-blocking append.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewID generates a cryptographically random 128-bit record identifier,
// rendered as a canonical UUID string (spec §6.3).
func NewID() string {
	return uuid.NewString()
}

// FinalAction is the outcome recorded for a completed request.
type FinalAction string

const (
	ActionPass   FinalAction = "pass"
	ActionBlock  FinalAction = "block"
	ActionRedact FinalAction = "redact"
)

// PhaseDecision captures one phase's classifier outcome for the record.
// Only the fields needed for audit are kept; the full pipeline.StageResult
// is not serialized verbatim so the chain's canonical bytes stay stable
// across internal refactors of pipeline.StageResult.
type PhaseDecision struct {
	ClassifierName string  `json:"classifier_name"`
	Label          string  `json:"label"`
	Score          float64 `json:"score"`
}

// MidstreamEvent is one recorded midstream evaluation within a streamed
// response (spec §3's "midstream_events[]").
type MidstreamEvent struct {
	ChunkIndex int           `json:"chunk_index"`
	Action     string        `json:"action"`
	Decision   PhaseDecision `json:"decision"`
}

// Record is the Request Record named in spec §3. Fields are exported in
// the exact order canonical serialization must use; do not reorder
// without treating it as a breaking change to the audit chain.
type Record struct {
	ID              string           `json:"id"`
	Tenant          string           `json:"tenant"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	UpstreamModel   string           `json:"upstream_model"`
	IngressDecision *PhaseDecision   `json:"ingress_decision,omitempty"`
	MidstreamEvents []MidstreamEvent `json:"midstream_events,omitempty"`
	EgressDecision  *PhaseDecision   `json:"egress_decision,omitempty"`
	FinalAction     FinalAction      `json:"final_action"`
	// TriggeredRuleID names the classifier that produced FinalAction, so
	// the audit trail agrees with the X-CheckStream-Rule-Triggered
	// response header about which rule fired (not just which phase).
	TriggeredRuleID string `json:"triggered_rule_id,omitempty"`

	// PrevHash is the self_hash of the preceding record in the chain, or
	// all-zero for the chain's first record.
	PrevHash string `json:"prev_hash"`
	// SelfHash is computed over PrevHash and the canonical bytes of every
	// field above; never set it directly, it is filled in by the chain
	// writer's Append.
	SelfHash string `json:"self_hash"`
}

// genesisHash is the PrevHash of the first record ever appended to a chain.
var genesisHash = hex.EncodeToString(make([]byte, sha256.Size))

// canonicalBytes serializes every chained field of r except SelfHash, in a
// fixed order, so H(prev_hash || canonical_bytes) is reproducible (spec
// §4.8). encoding/json preserves Go struct field order for struct values,
// which is what makes this reproducible without a custom canonicalizer.
func canonicalBytes(r Record) ([]byte, error) {
	r.SelfHash = ""
	return json.Marshal(r)
}

// selfHash computes SHA-256(prevHash || canonicalBytes) and returns it hex
// encoded, matching the format SelfHash and PrevHash are stored in.
func selfHash(prevHash string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes self_hash for every record in chain (assumed in
// append order) and reports whether each one matches both the recorded
// prev_hash linkage and its own stored self_hash. An empty chain verifies
// trivially. The returned index is the position of the first mismatch, or
// -1 if the whole slice verifies.
func Verify(chain []Record) (ok bool, badIndex int) {
	prev := genesisHash
	for i, rec := range chain {
		if rec.PrevHash != prev {
			return false, i
		}
		canonical, err := canonicalBytes(rec)
		if err != nil {
			return false, i
		}
		want := selfHash(rec.PrevHash, canonical)
		if want != rec.SelfHash {
			return false, i
		}
		prev = rec.SelfHash
	}
	return true, -1
}
