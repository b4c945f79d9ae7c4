// Package jobs names CLI runs so their log lines can be correlated.
package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns prefix followed by a random UUID without dashes.
// The prefix should include a trailing dash, e.g. "scan-", "upload-".
func GenerateID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
