package flow

import "github.com/google/uuid"

// GenerateID returns a prefixed unique identifier, e.g. "wf-3f2a…".
// The prefix makes IDs self-describing in logs and API payloads.
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
