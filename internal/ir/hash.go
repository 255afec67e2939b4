package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDecision = "omni/decision/v1"
	DomainRun      = "omni/forge-run/v1"
)

// InputHash returns the lowercase hex SHA-256 of canonical input bytes.
// The forge uses it as a build-input fingerprint, so no domain prefix is
// mixed in: the digest matches a plain sha256sum of the canonical JSON.
func InputHash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DecisionID computes a content-addressed id for one recorded ActionGate
// decision. The same session, sequence number and outcome always produce
// the same id, which makes store writes idempotent.
func DecisionID(sessionID string, seq int64, actionID string, allowed bool, reason string, canceled []string) (string, error) {
	obj := map[string]any{
		"session_id": sessionID,
		"seq":        seq,
		"action_id":  actionID,
		"allowed":    allowed,
		"reason":     reason,
		"canceled":   append([]string(nil), canceled...),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DecisionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDecision, canonical), nil
}

// RunID computes a content-addressed id for a forge run from its run token
// and input hash.
func RunID(token, inputHash string) string {
	return hashWithDomain(DomainRun, []byte(strings.Join([]string{token, inputHash}, "\x00")))
}

// MustDecisionID is like DecisionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDecisionID(sessionID string, seq int64, actionID string, allowed bool, reason string, canceled []string) string {
	id, err := DecisionID(sessionID, seq, actionID, allowed, reason, canceled)
	if err != nil {
		panic(err)
	}
	return id
}
