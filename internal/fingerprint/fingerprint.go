// Package fingerprint computes the deterministic digests used to decide
// whether a page or the labyrinth changed since the last sync. The
// digests are change detectors, not security boundaries.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"

	"github.com/nwerner/labsync/internal/content"
)

// Checksum returns the hex digest of raw bytes. Used for asset contents.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Page fingerprints one page: its content facet, its metadata facet, and
// the checksums of every asset referenced from content and answer
// explanations. The metadata is encoded from the decoded struct, so JSON
// key order in the source file cannot influence the result. Asset
// checksums are sorted before hashing so enumeration order cannot either.
func Page(pageContent string, meta *content.PageMeta, assetChecksums []string) (string, error) {
	encodedMeta, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding page metadata: %w", err)
	}

	h := sha256.New()
	writeSection(h, []byte(pageContent))
	writeSection(h, encodedMeta)

	sorted := append([]string(nil), assetChecksums...)
	sort.Strings(sorted)
	for _, sum := range sorted {
		writeSection(h, []byte(sum))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Labyrinth fingerprints the labyrinth config plus the checksum of its
// title image (empty when no image is configured).
func Labyrinth(cfg *content.LabyrinthConfig, titleAssetChecksum string) (string, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding labyrinth config: %w", err)
	}

	h := sha256.New()
	writeSection(h, encoded)
	writeSection(h, []byte(titleAssetChecksum))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeSection length-prefixes each input so adjacent sections cannot be
// confused for one another.
func writeSection(h hash.Hash, data []byte) {
	fmt.Fprintf(h, "%d:", len(data))
	h.Write(data)
}
