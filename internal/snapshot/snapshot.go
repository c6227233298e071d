// Package snapshot freezes proposal content into content-addressed records.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentFields is the allowlist of proposal fields copied into a snapshot.
var ContentFields = []string{
	"title",
	"executiveSummary",
	"diagnosis",
	"scope",
	"methodology",
	"deliverables",
	"timeline",
	"pricing",
	"assumptions",
	"exclusions",
	"acceptanceCriteria",
	"nextSteps",
	"terms",
	"content",
}

// listFields default to an empty list when absent.
var listFields = map[string]bool{
	"deliverables":       true,
	"timeline":           true,
	"assumptions":        true,
	"exclusions":         true,
	"acceptanceCriteria": true,
	"nextSteps":          true,
}

// FreezeContent projects a proposal document onto ContentFields. Fields
// outside the allowlist never reach the result. title falls back to
// defaultTitle when the document has none.
func FreezeContent(document map[string]any, defaultTitle string) map[string]any {
	frozen := make(map[string]any, len(ContentFields))
	for _, field := range ContentFields {
		v, ok := document[field]
		switch {
		case ok && v != nil:
			frozen[field] = v
		case listFields[field]:
			frozen[field] = []any{}
		}
	}
	if _, ok := frozen["title"]; !ok && defaultTitle != "" {
		frozen["title"] = defaultTitle
	}
	return frozen
}

// checksumInput is the exact object hashed for a snapshot.
type checksumInput struct {
	Content  map[string]any `json:"content"`
	Branding map[string]any `json:"branding"`
	Terms    any            `json:"terms"`
}

// Checksum returns the hex SHA-256 of the canonical JSON of
// {content, branding, terms}.
func Checksum(content, branding map[string]any, terms any) (string, error) {
	canonical, err := CanonicalJSON(checksumInput{Content: content, Branding: branding, Terms: terms})
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify re-derives the checksum from stored fields and compares it with
// the recorded one.
func Verify(content, branding map[string]any, terms any, recorded string) (string, bool, error) {
	actual, err := Checksum(content, branding, terms)
	if err != nil {
		return "", false, err
	}
	return actual, actual == recorded, nil
}

// versionLayout is ISO-8601 with millisecond precision in UTC.
const versionLayout = "2006-01-02T15:04:05.000Z07:00"

// NewVersion returns the version identifier for a snapshot created at at:
// the ISO-8601 instant followed by a random suffix, so two snapshots taken
// in the same millisecond do not collide.
func NewVersion(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return at.UTC().Format(versionLayout) + "-" + suffix
}
