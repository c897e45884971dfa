// Package ids generates prefixed unique identifiers.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a collision-safe identifier like "job_4f9c...". The prefix
// keeps ids greppable in logs and lets clients tell resource kinds apart.
func New(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
