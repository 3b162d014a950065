package clipboard

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash digests normalized text plus optional image bytes into the
// hex key used for deduplication and as the asset-cache key. Identical
// captures hash identically regardless of when or how they were copied.
func ContentHash(text string, imageBytes []byte) string {
	digest := sha256.New()
	digest.Write([]byte(strings.TrimSpace(text)))
	if len(imageBytes) > 0 {
		digest.Write(imageBytes)
	}
	return hex.EncodeToString(digest.Sum(nil))
}
