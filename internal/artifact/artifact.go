// Package artifact defines the canonical evidence record shared by every
// collector and parser, along with the deterministic id scheme.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReplayEndpoint is the base URL for archived snapshot playback.
const ReplayEndpoint = "https://web.archive.org/web"

// SourceRef records where an artifact came from and when it was retrieved.
// Fields are declared in key order so emitted JSON keys stay sorted.
type SourceRef struct {
	Kind        string `json:"kind"`
	RetrievedAt string `json:"retrieved_at"`
	Value       string `json:"value"`
}

// Artifact is one unit of captured evidence. It is created exactly once
// per id and the archival layer never mutates source or id afterwards;
// parsers only append tags and fill derived fields.
// Fields are declared in key order so emitted JSON keys stay sorted.
type Artifact struct {
	BodyText    *string             `json:"body_text"`
	ContentType string              `json:"content_type"`
	ExtractedAt string              `json:"extracted_at,omitempty"`
	ID          string              `json:"id"`
	IssueTags   []string            `json:"issue_tags,omitempty"`
	Notes       []string            `json:"notes,omitempty"`
	Source      SourceRef           `json:"source"`
	TagEvidence map[string][]string `json:"tag_evidence,omitempty"`
	Tags        []string            `json:"tags"`
	Title       string              `json:"title"`
}

// HasTag reports whether tag is already present.
func (a *Artifact) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends tag unless it is already present; insertion order is kept.
func (a *Artifact) AddTag(tag string) {
	if !a.HasTag(tag) {
		a.Tags = append(a.Tags, tag)
	}
}

// AddNote appends a free-form processing note.
func (a *Artifact) AddNote(note string) {
	a.Notes = append(a.Notes, note)
}

// CaptureID returns the stable id for one archived capture. It depends
// only on the original URL and the capture timestamp, so re-processing
// the same capture in a later run yields the same id.
func CaptureID(originalURL, timestamp string) string {
	return "wayback:" + shortDigest(originalURL + "|" + timestamp)
}

// ChangeID returns the id for a change event on url at the new capture
// timestamp. The discriminator keeps it in a distinct id space from
// CaptureID for the same (url, timestamp) pair.
func ChangeID(originalURL, timestamp string) string {
	return "wayback-change:" + shortDigest("change|"+originalURL+"|"+timestamp)
}

func shortDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// ArchivedURL builds the replay URL for a capture.
func ArchivedURL(originalURL, timestamp string) string {
	return fmt.Sprintf("%s/%s/%s", ReplayEndpoint, timestamp, originalURL)
}

// Timestamp formats t as the ISO-8601 UTC form used in source.retrieved_at.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Path returns the artifact file path for id under dir.
func Path(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

// Write persists the artifact as indented JSON with a trailing newline.
func Write(path string, a Artifact) error {
	payload, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", a.ID, err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o600); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// Load reads one artifact file.
func Load(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return a, nil
}
