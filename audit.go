package auditor

import (
	"encoding/json"
	"fmt"
)

// Challenge is the opaque payload of an audit: the parameters a worker
// needs to issue the cryptographic challenge against a storage node. The
// queue never inspects these fields; they are produced by the audit
// generator and consumed by the verifier.
type Challenge struct {
	ID        string `json:"id"`
	Root      string `json:"root"`
	Depth     int    `json:"depth"`
	Challenge string `json:"challenge"`
	Hash      string `json:"hash"`
}

// Audit is one scheduled integrity audit. TS is the schedule time in epoch
// milliseconds and doubles as the backlog sort key.
type Audit struct {
	TS   int64     `json:"ts"`
	Data Challenge `json:"data"`
}

// Encode serializes the audit into its wire form. Audits are stored and
// published as whole JSON blobs; serialized identity is entry identity.
func (a *Audit) Encode() ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("auditor: encode audit: %w", err)
	}
	return raw, nil
}

// Decode parses a stored entry back into an Audit. A payload that does not
// parse is reported as a *CorruptEntryError rather than a bare JSON error
// so callers can distinguish store corruption from transport failures.
func Decode(raw []byte) (*Audit, error) {
	var a Audit
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, &CorruptEntryError{Raw: raw, Err: err}
	}
	return &a, nil
}

// EncodeBatch serializes a batch of audits as a single JSON array. Batches
// are published whole on the backlog and ready channels.
func EncodeBatch(audits []*Audit) ([]byte, error) {
	raw, err := json.Marshal(audits)
	if err != nil {
		return nil, fmt.Errorf("auditor: encode batch: %w", err)
	}
	return raw, nil
}

// DecodeBatch parses a published batch back into audits.
func DecodeBatch(raw []byte) ([]*Audit, error) {
	var audits []*Audit
	if err := json.Unmarshal(raw, &audits); err != nil {
		return nil, &CorruptEntryError{Raw: raw, Err: err}
	}
	return audits, nil
}
