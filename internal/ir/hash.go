package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows migrating the algorithm later.
const (
	DomainEvent  = "cellsync/event/v1"
	DomainTables = "cellsync/tables/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id of a committed event.
// The payload must already be canonical JSON.
//
// The actor and timestamp are part of the identity: two identical payloads
// committed by different actors at the same position are different facts.
func EventID(storeID string, seq int64, name string, payload []byte, actorID string, timestampMs int64) (string, error) {
	body, err := Parse(payload)
	if err != nil {
		return "", fmt.Errorf("EventID: payload: %w", err)
	}
	obj := Object{
		"store_id":  String(storeID),
		"seq":       Int(seq),
		"name":      String(name),
		"payload":   body,
		"actor_id":  String(actorID),
		"timestamp": Int(timestampMs),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// Digest hashes already-serialized data under a domain.
func Digest(domain string, data []byte) string {
	return hashWithDomain(domain, data)
}
