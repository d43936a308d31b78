// Package minutes parses a meeting snapshot into a Meeting document
// with an inferred meeting date and the roll-call motions found in the
// text.
package minutes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
	"github.com/laruecivic/civic-intel/internal/extraction"
)

// Motion is one recorded vote or procedural action. Result stays nil
// until a later pass attributes an outcome.
// Fields are declared in key order so emitted JSON keys stay sorted.
type Motion struct {
	Result *string `json:"result"`
	Text   string  `json:"text"`
}

// Meeting is one parsed meeting of the governing body.
// Fields are declared in key order so emitted JSON keys stay sorted.
type Meeting struct {
	ArtifactIDs []string `json:"artifact_ids"`
	BodyID      string   `json:"body_id"`
	ID          string   `json:"id"`
	Motions     []Motion `json:"motions"`
	StartedAt   string   `json:"started_at"`
}

var (
	numericDate = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	writtenDate = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2}),\s+(\d{4})`)
)

var monthNumbers = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// Parser turns artifact/snapshot pairs into Meeting documents.
type Parser struct {
	bodyID      string
	meetingsDir string
	logger      *zap.Logger
	now         func() time.Time
}

// New builds a Parser writing Meeting JSON under meetingsDir.
func New(bodyID, meetingsDir string, logger *zap.Logger) *Parser {
	return &Parser{
		bodyID:      bodyID,
		meetingsDir: meetingsDir,
		logger:      logger,
		now:         time.Now,
	}
}

// Parse builds a Meeting from one artifact and its snapshot file.
func (p *Parser) Parse(artifactPath, snapshotPath string) (Meeting, error) {
	a, err := artifact.Load(artifactPath)
	if err != nil {
		return Meeting{}, err
	}

	text, err := extraction.FromFile(snapshotPath)
	if err != nil {
		return Meeting{}, fmt.Errorf("extract snapshot %s: %w", snapshotPath, err)
	}

	meeting := Meeting{
		ArtifactIDs: []string{a.ID},
		BodyID:      p.bodyID,
		ID:          MeetingID(a.Source.Value),
		Motions:     DetectMotions(text),
		StartedAt:   p.inferStartedAt(text, snapshotPath, a.Source.RetrievedAt),
	}
	return meeting, nil
}

// Write persists the meeting as indented JSON under the meetings dir.
func (p *Parser) Write(meeting Meeting) (string, error) {
	if err := os.MkdirAll(p.meetingsDir, 0o750); err != nil {
		return "", fmt.Errorf("create meetings dir: %w", err)
	}
	payload, err := json.MarshalIndent(meeting, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal meeting %s: %w", meeting.ID, err)
	}
	path := filepath.Join(p.meetingsDir, meeting.ID+".json")
	if err := os.WriteFile(path, append(payload, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write meeting %s: %w", path, err)
	}
	p.logger.Info("meeting written",
		zap.String("id", meeting.ID),
		zap.String("started_at", meeting.StartedAt),
		zap.Int("motions", len(meeting.Motions)))
	return path, nil
}

// MeetingID derives a stable meeting id from the source URL.
func MeetingID(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return "meeting:" + hex.EncodeToString(sum[:])
}

// DetectMotions pulls out the lines that record a roll-call vote.
func DetectMotions(text string) []Motion {
	motions := []Motion{}
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "roll call") || strings.Contains(lower, "roll-call") {
			motions = append(motions, Motion{Text: strings.TrimSpace(line)})
		}
	}
	return motions
}

// inferStartedAt finds the meeting date in the document text, then the
// snapshot filename, then falls back to the artifact's retrieval date
// and finally the current time, always truncated to midnight UTC.
func (p *Parser) inferStartedAt(text, snapshotPath, retrievedAt string) string {
	if t, ok := parseDate(text); ok {
		return formatMidnight(t)
	}
	stem := strings.TrimSuffix(filepath.Base(snapshotPath), filepath.Ext(snapshotPath))
	if t, ok := parseDate(stem); ok {
		return formatMidnight(t)
	}
	if t, err := time.Parse(time.RFC3339, retrievedAt); err == nil {
		return formatMidnight(t)
	}
	return formatMidnight(p.now())
}

func parseDate(text string) (time.Time, bool) {
	for _, m := range numericDate.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t, ok := validDate(year, time.Month(month), day); ok {
			return t, true
		}
	}
	for _, m := range writtenDate.FindAllStringSubmatch(text, -1) {
		month, ok := monthNumbers[strings.ToLower(m[1])]
		if !ok {
			continue
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := validDate(year, month, day); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// validDate rejects matches like 2024-13-45 that the regex lets through.
func validDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func formatMidnight(t time.Time) string {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05Z")
}
