package valueobject

import (
	"fmt"
	"net/url"
	"strings"
)

// correlationKeyPrefix versions the key format so keys echoed back by a
// provider running against an older orchestrator are rejected cleanly.
const correlationKeyPrefix = "bf1:"

const correlationKeySegments = 4

// CorrelationKey is the stable identifier round-tripped through the remote
// provider to map results back to work items. Keys are pure functions of the
// item identity, so rebuilding a submission always yields the same keys.
type CorrelationKey string

// MalformedKeyError indicates a string that was not produced by
// NewCorrelationKey, typically a provider-side echo bug.
type MalformedKeyError struct {
	Key    string
	Reason string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed correlation key %q: %s", e.Key, e.Reason)
}

// NewCorrelationKey encodes an item identity into a correlation key.
// All four components are required.
func NewCorrelationKey(namespace, collection, itemID, processor string) (CorrelationKey, error) {
	for name, v := range map[string]string{
		"namespace":  namespace,
		"collection": collection,
		"item_id":    itemID,
		"processor":  processor,
	} {
		if v == "" {
			return "", fmt.Errorf("correlation key %s cannot be empty", name)
		}
	}

	segments := []string{
		url.PathEscape(namespace),
		url.PathEscape(collection),
		url.PathEscape(itemID),
		url.PathEscape(processor),
	}
	return CorrelationKey(correlationKeyPrefix + strings.Join(segments, "/")), nil
}

// Decode returns the identity components the key was built from. It is the
// exact inverse of NewCorrelationKey and fails with MalformedKeyError on any
// string not produced by it.
func (k CorrelationKey) Decode() (namespace, collection, itemID, processor string, err error) {
	raw := string(k)
	if !strings.HasPrefix(raw, correlationKeyPrefix) {
		return "", "", "", "", &MalformedKeyError{Key: raw, Reason: "missing version prefix"}
	}

	parts := strings.Split(strings.TrimPrefix(raw, correlationKeyPrefix), "/")
	if len(parts) != correlationKeySegments {
		return "", "", "", "", &MalformedKeyError{
			Key:    raw,
			Reason: fmt.Sprintf("expected %d segments, got %d", correlationKeySegments, len(parts)),
		}
	}

	decoded := make([]string, correlationKeySegments)
	for i, part := range parts {
		if part == "" {
			return "", "", "", "", &MalformedKeyError{Key: raw, Reason: "empty segment"}
		}
		decoded[i], err = url.PathUnescape(part)
		if err != nil {
			return "", "", "", "", &MalformedKeyError{Key: raw, Reason: "invalid escape sequence"}
		}
	}

	return decoded[0], decoded[1], decoded[2], decoded[3], nil
}

// String returns the encoded key.
func (k CorrelationKey) String() string {
	return string(k)
}
