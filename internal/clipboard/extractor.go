package clipboard

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"net/url"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"go.uber.org/zap"
)

// ErrNothingToCapture reports a snapshot that offered no usable
// representation. Callers drop the cycle without surfacing an error.
var ErrNothingToCapture = errors.New("clipboard: no usable representation")

// Extractor normalizes a pasteboard snapshot into a Captured record.
//
// Representation priority: concrete (non-HTTP) file URLs win over image
// data so that copying a file is never downgraded to a generic image, image
// data wins over plain text, and text comes last. HTTP/HTTPS URLs stay text
// here; the classifier decides whether they are links.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(snapshot Snapshot, source AppInfo) (Captured, error) {
	reps := snapshot.Reps

	if paths := localFilePaths(reps.FileURLs); len(paths) > 0 {
		return e.extractFiles(paths, source), nil
	}

	if len(reps.Image) > 0 {
		captured, err := e.extractImage(reps.Image, source)
		if err == nil {
			return captured, nil
		}
		e.logger.Debug("image decode failed, falling back to text", zap.Error(err))
	}

	if strings.TrimSpace(reps.Text) != "" {
		return e.extractText(reps, source), nil
	}

	return Captured{}, ErrNothingToCapture
}

func (e *Extractor) extractFiles(paths []string, source AppInfo) Captured {
	captured := Captured{
		Text:          strings.Join(paths, "\n"),
		FilePaths:     paths,
		Type:          TypeFile,
		SourceAppID:   source.BundleID,
		SourceAppName: source.Name,
	}
	captured.FileSizeBytes = aggregateFileSize(paths)
	captured.Hash = ContentHash(captured.Text, nil)
	return captured
}

// extractImage re-encodes to PNG before hashing so the hash does not depend
// on whichever transfer format the writing application happened to choose.
func (e *Extractor) extractImage(raw []byte, source AppInfo) (Captured, error) {
	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Captured{}, err
	}
	var canonical bytes.Buffer
	if err := png.Encode(&canonical, decoded); err != nil {
		return Captured{}, err
	}
	imageBytes := canonical.Bytes()
	return Captured{
		ImageBytes:    imageBytes,
		Type:          TypeImage,
		SourceAppID:   source.BundleID,
		SourceAppName: source.Name,
		Hash:          ContentHash("", imageBytes),
	}, nil
}

func (e *Extractor) extractText(reps Representations, source AppInfo) Captured {
	captured := Captured{
		Text:          reps.Text,
		Type:          Classify(reps.Text),
		SourceAppID:   source.BundleID,
		SourceAppName: source.Name,
		Hash:          ContentHash(reps.Text, nil),
	}
	// The rich payload only feeds later re-rendering; RTF is preferred and
	// HTML is the fallback. It never affects classification.
	if len(reps.RTF) > 0 {
		captured.RichPayload = reps.RTF
	} else if len(reps.HTML) > 0 {
		captured.RichPayload = reps.HTML
	}
	return captured
}

// localFilePaths keeps only URLs that resolve to filesystem paths.
// HTTP/HTTPS URLs are textual links, not file captures.
func localFilePaths(fileURLs []string) []string {
	paths := make([]string, 0, len(fileURLs))
	for _, raw := range fileURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		switch parsed.Scheme {
		case "http", "https":
			continue
		case "file":
			if parsed.Path != "" {
				paths = append(paths, parsed.Path)
			}
		case "":
			if raw != "" {
				paths = append(paths, raw)
			}
		}
	}
	return paths
}

// aggregateFileSize sums sizes across all paths. Missing or unreadable
// files contribute nothing; the capture still proceeds.
func aggregateFileSize(paths []string) int64 {
	var total int64
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}
		total += info.Size()
	}
	return total
}
