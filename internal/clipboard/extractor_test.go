package clipboard

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func encodeTestPNG(t *testing.T, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestExtractorPrefersFilesOverImageAndText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, []byte("not really a png"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	extractor := NewExtractor(nil)
	snapshot := Snapshot{
		Token: 1,
		Reps: Representations{
			Text:     path,
			Image:    encodeTestPNG(t, color.White),
			FileURLs: []string{"file://" + path},
		},
		ObservedAt: time.Now(),
	}
	captured, err := extractor.Extract(snapshot, AppInfo{Name: "Finder"})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if captured.Type != TypeFile {
		t.Fatalf("file capture classified as %q", captured.Type)
	}
	if len(captured.FilePaths) != 1 || captured.FilePaths[0] != path {
		t.Fatalf("unexpected paths: %v", captured.FilePaths)
	}
	if captured.FileSizeBytes != int64(len("not really a png")) {
		t.Fatalf("unexpected aggregate size: %d", captured.FileSizeBytes)
	}
}

func TestExtractorHTTPURLsAreNotFileCaptures(t *testing.T) {
	extractor := NewExtractor(nil)
	snapshot := Snapshot{
		Reps: Representations{
			Text:     "https://example.com/report.pdf",
			FileURLs: []string{"https://example.com/report.pdf"},
		},
	}
	captured, err := extractor.Extract(snapshot, AppInfo{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if captured.Type != TypeLink {
		t.Fatalf("textual URL classified as %q, want link", captured.Type)
	}
}

func TestExtractorMissingFilesTolerated(t *testing.T) {
	extractor := NewExtractor(nil)
	snapshot := Snapshot{
		Reps: Representations{
			FileURLs: []string{"file:///nonexistent/a", "file:///nonexistent/b"},
		},
	}
	captured, err := extractor.Extract(snapshot, AppInfo{})
	if err != nil {
		t.Fatalf("missing files must not fail the capture: %v", err)
	}
	if captured.Type != TypeFile {
		t.Fatalf("unexpected type %q", captured.Type)
	}
	if captured.FileSizeBytes != 0 {
		t.Fatalf("size should be omitted for unreadable files, got %d", captured.FileSizeBytes)
	}
}

func TestExtractorCanonicalizesImageHash(t *testing.T) {
	extractor := NewExtractor(nil)
	imageBytes := encodeTestPNG(t, color.RGBA{R: 200, G: 40, B: 40, A: 255})

	first, err := extractor.Extract(Snapshot{Reps: Representations{Image: imageBytes}}, AppInfo{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	second, err := extractor.Extract(Snapshot{Reps: Representations{Image: imageBytes}}, AppInfo{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("image hash unstable across extractions")
	}
	if first.Type != TypeImage {
		t.Fatalf("unexpected type %q", first.Type)
	}
	if first.Hash != ContentHash("", first.ImageBytes) {
		t.Fatalf("hash not derived from canonical bytes")
	}
}

func TestExtractorCorruptImageFallsBackToText(t *testing.T) {
	extractor := NewExtractor(nil)
	snapshot := Snapshot{
		Reps: Representations{
			Text:  "caption",
			Image: []byte("definitely not an image"),
		},
	}
	captured, err := extractor.Extract(snapshot, AppInfo{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if captured.Type != TypeText || captured.Text != "caption" {
		t.Fatalf("corrupt image did not fall back to text: %+v", captured)
	}
}

func TestExtractorRichPayloadPrefersRTF(t *testing.T) {
	extractor := NewExtractor(nil)
	captured, err := extractor.Extract(Snapshot{
		Reps: Representations{
			Text: "styled",
			RTF:  []byte("{\\rtf1 styled}"),
			HTML: []byte("<b>styled</b>"),
		},
	}, AppInfo{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if string(captured.RichPayload) != "{\\rtf1 styled}" {
		t.Fatalf("RTF not preferred: %q", captured.RichPayload)
	}

	captured, err = extractor.Extract(Snapshot{
		Reps: Representations{Text: "styled", HTML: []byte("<b>styled</b>")},
	}, AppInfo{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if string(captured.RichPayload) != "<b>styled</b>" {
		t.Fatalf("HTML fallback missing: %q", captured.RichPayload)
	}
}

func TestExtractorEmptySnapshot(t *testing.T) {
	extractor := NewExtractor(nil)
	_, err := extractor.Extract(Snapshot{}, AppInfo{})
	if !errors.Is(err, ErrNothingToCapture) {
		t.Fatalf("expected ErrNothingToCapture, got %v", err)
	}
}
