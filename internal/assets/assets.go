// Package assets resolves, deduplicates and uploads the image assets
// referenced from page markup, and substitutes the uploaded URLs into
// the markup before submission. Deduplication is by content checksum and
// spans the whole run: the first reference uploads, later references
// reuse the cached URL even under a different filename.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/nwerner/labsync/internal/content"
	"github.com/nwerner/labsync/internal/fingerprint"
	"github.com/nwerner/labsync/internal/gateway"
)

// srcPattern matches src attributes in page markup. External and inline
// references are filtered out afterwards.
var srcPattern = regexp.MustCompile(`src\s*=\s*"([^"]+)"`)

// References extracts the local asset references from markup, in order
// of appearance, duplicates included.
func References(markup string) []string {
	var refs []string
	for _, m := range srcPattern.FindAllStringSubmatch(markup, -1) {
		ref := m[1]
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			continue
		}
		if strings.HasPrefix(ref, "data:") {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// Uploader uploads assets through the gateway, backed by the run-wide
// checksum cache stored in the labyrinth record.
type Uploader struct {
	tree   *content.Tree
	gw     gateway.Gateway
	cache  map[string]string
	logger *slog.Logger
}

// NewUploader creates an uploader over the given cache map. The map is
// the labyrinth record's AssetCache; entries added here are persisted by
// the caller when it saves the record.
func NewUploader(tree *content.Tree, gw gateway.Gateway, cache map[string]string, logger *slog.Logger) *Uploader {
	return &Uploader{tree: tree, gw: gw, cache: cache, logger: logger}
}

// Checksums returns the checksums of every asset referenced from the
// markup, anchored at the given page. No uploads happen. Used for
// fingerprinting.
func (u *Uploader) Checksums(pageName, markup string) ([]string, error) {
	var sums []string
	for _, ref := range References(markup) {
		sum, _, err := u.checksum(pageName, ref)
		if err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, nil
}

// Rewrite uploads every asset referenced from the markup (unless its
// checksum is already cached) and returns the markup with references
// replaced by the uploaded URLs.
func (u *Uploader) Rewrite(ctx context.Context, pageName, markup string) (string, error) {
	rewritten := markup

	for _, ref := range References(markup) {
		sum, path, err := u.checksum(pageName, ref)
		if err != nil {
			return "", err
		}

		url, ok := u.cache[sum]
		if !ok {
			u.logger.Info("uploading asset",
				slog.String("page", pageName),
				slog.String("ref", ref),
			)

			url, err = u.gw.UploadAsset(ctx, path)
			if err != nil {
				return "", fmt.Errorf("uploading %s: %w", ref, err)
			}
			if url == "" {
				return "", fmt.Errorf("uploading %s: no URL in response", ref)
			}
			u.cache[sum] = url
		}

		rewritten = strings.ReplaceAll(rewritten, `"`+ref+`"`, `"`+url+`"`)
	}

	return rewritten, nil
}

// checksum resolves a reference to a filesystem path and digests the
// file's bytes.
func (u *Uploader) checksum(pageName, ref string) (sum, path string, err error) {
	path, err = u.tree.ResolveAsset(pageName, ref)
	if err != nil {
		return "", "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading asset %s: %w", ref, err)
	}

	return fingerprint.Checksum(data), path, nil
}
