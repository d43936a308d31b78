// Package extraction fills artifact body_text from stored snapshots.
// HTML goes through goquery with script and style content removed, PDFs
// through a text extractor, and plain text is normalized in place.
package extraction

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
)

// Tags applied by the extraction pass.
const (
	TagExtracted     = "text_extracted"
	TagExtractFailed = "extract_failed"
	TagUnextractable = "unextractable"
)

var extensionMIME = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
}

// Summary counts the outcome of one extraction run.
type Summary struct {
	Processed int
	Extracted int
	Skipped   int
	Failed    int
}

// Extractor walks the artifacts directory and extracts text for every
// artifact whose body_text is still empty.
type Extractor struct {
	artifactsDir string
	snapshotsDir string
	logger       *zap.Logger
	now          func() string
}

// New builds an Extractor. snapshotsDir is the root under which every
// source writes its snapshot files.
func New(artifactsDir, snapshotsDir string, logger *zap.Logger) *Extractor {
	return &Extractor{
		artifactsDir: artifactsDir,
		snapshotsDir: snapshotsDir,
		logger:       logger,
		now:          func() string { return artifact.Timestamp(timeNow()) },
	}
}

// Run processes every artifact JSON file under the artifacts directory.
// Artifacts that already carry body text are skipped, so a second run
// over the same tree is a no-op.
func (e *Extractor) Run() (Summary, error) {
	var summary Summary

	paths, err := filepath.Glob(filepath.Join(e.artifactsDir, "*.json"))
	if err != nil {
		return summary, fmt.Errorf("list artifacts: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		e.logger.Info("no artifacts to extract", zap.String("dir", e.artifactsDir))
		return summary, nil
	}

	index, err := buildSnapshotIndex(e.snapshotsDir)
	if err != nil {
		return summary, err
	}

	for _, path := range paths {
		a, err := artifact.Load(path)
		if err != nil {
			e.logger.Warn("skipping unreadable artifact", zap.String("path", path), zap.Error(err))
			continue
		}
		summary.Processed++

		if a.BodyText != nil && strings.TrimSpace(*a.BodyText) != "" {
			summary.Skipped++
			continue
		}

		snapshotPath, ok := index[a.ID]
		if !ok {
			a.AddTag(TagExtractFailed)
			a.AddNote(fmt.Sprintf("Snapshot not found for artifact id %s.", a.ID))
			summary.Failed++
			if err := artifact.Write(path, a); err != nil {
				return summary, err
			}
			continue
		}

		text, outcome, err := extractByType(resolveContentType(a.ContentType, snapshotPath), snapshotPath)
		if err != nil {
			e.logger.Warn("extraction failed",
				zap.String("id", a.ID),
				zap.String("snapshot", snapshotPath),
				zap.Error(err))
			a.AddTag(TagExtractFailed)
			a.AddNote(fmt.Sprintf("Extraction failed: %v.", err))
			summary.Failed++
			if err := artifact.Write(path, a); err != nil {
				return summary, err
			}
			continue
		}
		if outcome == outcomeUnsupported {
			a.AddTag(TagUnextractable)
			a.AddNote(fmt.Sprintf("Unsupported content_type: %s.", orUnknown(a.ContentType)))
			summary.Failed++
			if err := artifact.Write(path, a); err != nil {
				return summary, err
			}
			continue
		}

		a.BodyText = &text
		a.AddTag(TagExtracted)
		a.ExtractedAt = e.now()
		if err := artifact.Write(path, a); err != nil {
			return summary, err
		}
		summary.Extracted++
	}

	e.logger.Info("extraction run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("extracted", summary.Extracted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

type outcome int

const (
	outcomeExtracted outcome = iota
	outcomeUnsupported
)

func extractByType(contentType, snapshotPath string) (string, outcome, error) {
	switch contentType {
	case "text/html":
		text, err := HTMLFile(snapshotPath)
		return text, outcomeExtracted, err
	case "text/plain":
		data, err := os.ReadFile(snapshotPath)
		if err != nil {
			return "", outcomeExtracted, fmt.Errorf("read snapshot %s: %w", snapshotPath, err)
		}
		return NormalizeText(string(data)), outcomeExtracted, nil
	case "application/pdf":
		text, err := PDFFile(snapshotPath)
		return text, outcomeExtracted, err
	default:
		return "", outcomeUnsupported, nil
	}
}

// FromFile extracts normalized text from path, choosing the extractor by
// file extension. Parsers that work directly off snapshot files use this.
func FromFile(path string) (string, error) {
	switch extensionMIME[strings.ToLower(filepath.Ext(path))] {
	case "text/html":
		return HTMLFile(path)
	case "application/pdf":
		return PDFFile(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return NormalizeText(string(data)), nil
	}
}

// HTMLFile extracts visible text from an HTML snapshot.
func HTMLFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return HTMLText(data)
}

// HTMLText extracts visible text from raw HTML, dropping script, style
// and noscript content.
func HTMLText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return NormalizeText(doc.Text()), nil
}

// PDFFile extracts text from a PDF snapshot page by page.
func PDFFile(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d of %s: %w", i, path, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return NormalizeText(b.String()), nil
}

// NormalizeText collapses runs of whitespace inside each line and drops
// blank lines, so extracted text compares stably across runs.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed != "" {
			lines = append(lines, collapsed)
		}
	}
	return strings.Join(lines, "\n")
}

// buildSnapshotIndex maps snapshot file stems (artifact ids) to paths.
// The walk is sorted so the first match for a stem wins deterministically.
func buildSnapshotIndex(root string) (map[string]string, error) {
	index := make(map[string]string)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return index, nil
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk snapshots %s: %w", root, err)
	}
	sort.Strings(files)

	for _, path := range files {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, ok := index[stem]; !ok {
			index[stem] = path
		}
	}
	return index, nil
}

func resolveContentType(contentType, snapshotPath string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || !strings.Contains(ct, "/") {
		if mime, ok := extensionMIME[strings.ToLower(filepath.Ext(snapshotPath))]; ok {
			return mime
		}
	}
	return ct
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// timeNow is a seam for tests.
var timeNow = time.Now
