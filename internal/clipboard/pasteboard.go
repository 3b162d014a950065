package clipboard

import "time"

// AppInfo identifies the frontmost application at capture time.
type AppInfo struct {
	BundleID string
	Name     string
}

// Representations holds every payload the pasteboard offers for its current
// contents. Any field may be empty; a snapshot with no usable field is
// dropped by the extractor.
type Representations struct {
	Text     string
	RTF      []byte
	HTML     []byte
	Image    []byte
	FileURLs []string
}

// Pasteboard abstracts the OS clipboard read/write surface. The change token
// is a monotonic counter that increments on every write from any source.
type Pasteboard interface {
	ChangeToken() (uint64, error)
	Read() (Representations, error)
	FrontmostApp() (AppInfo, error)
	Write(text string) (uint64, error)
}

// Snapshot is one observed pasteboard state, created once per detected
// change and discarded after classification.
type Snapshot struct {
	Token      uint64
	Reps       Representations
	ObservedAt time.Time
}

// Captured is the normalized capture record produced by the extractor.
type Captured struct {
	Text          string
	RichPayload   []byte
	ImageBytes    []byte
	FilePaths     []string
	FileSizeBytes int64
	Type          ContentType
	SourceAppID   string
	SourceAppName string
	Hash          string
}
