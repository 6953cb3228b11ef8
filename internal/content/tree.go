// Package content is the store for the local file triple of every page
// (content, metadata, recorded state) and for the labyrinth config and
// record. It is pure data access; nothing here talks to the remote side.
package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// ConfigFile is the author-edited labyrinth configuration.
	ConfigFile = "labyrinth.json"
	// RecordFile is the engine-owned labyrinth recorded state.
	RecordFile = "labyrinth.sync.json"
	// PagesDir holds the per-page file triples.
	PagesDir = "pages"

	contentExt = ".html"
	metaExt    = ".json"
	recordExt  = ".sync.json"
)

// Tree provides access to one content tree on disk. All paths handed to
// its methods are relative to the tree root; resolution rejects path
// traversal outside the root.
type Tree struct {
	root string
}

// Open roots a Tree at dir, resolving it to an absolute path. The
// directory must exist; the labyrinth config is loaded separately.
func Open(dir string) (*Tree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving content tree path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening content tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content tree %s is not a directory", abs)
	}

	return &Tree{root: abs}, nil
}

// Root returns the absolute root directory of the tree.
func (t *Tree) Root() string {
	return t.root
}

// LoadConfig reads and decodes labyrinth.json. Decoding starts from
// DefaultSettings so absent presentation keys keep their defaults.
func (t *Tree) LoadConfig() (*LabyrinthConfig, error) {
	data, err := os.ReadFile(filepath.Join(t.root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ConfigFile, err)
	}

	cfg := &LabyrinthConfig{Settings: DefaultSettings()}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ConfigFile, err)
	}

	cfg.FirstPage = NormalizeName(cfg.FirstPage)

	return cfg, nil
}

// LoadRecord reads the labyrinth recorded state. A missing file yields an
// empty record: the labyrinth has never been created remotely.
func (t *Tree) LoadRecord() (*LabyrinthRecord, error) {
	rec := &LabyrinthRecord{
		KnownPageIDs: []string{},
		AssetCache:   map[string]string{},
	}

	data, err := os.ReadFile(filepath.Join(t.root, RecordFile))
	if os.IsNotExist(err) {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", RecordFile, err)
	}

	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", RecordFile, err)
	}
	if rec.KnownPageIDs == nil {
		rec.KnownPageIDs = []string{}
	}
	if rec.AssetCache == nil {
		rec.AssetCache = map[string]string{}
	}

	return rec, nil
}

// SaveRecord rewrites the labyrinth recorded state.
func (t *Tree) SaveRecord(rec *LabyrinthRecord) error {
	return t.writeJSON(RecordFile, rec)
}

// PageContent reads the content facet of a page.
func (t *Tree) PageContent(name string) (string, error) {
	data, err := t.readPageFile(name, contentExt)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PageMeta reads and decodes the metadata facet of a page.
func (t *Tree) PageMeta(name string) (*PageMeta, error) {
	data, err := t.readPageFile(name, metaExt)
	if err != nil {
		return nil, err
	}

	meta := &PageMeta{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("decoding metadata for page %s: %w", name, err)
	}

	for i := range meta.Answers {
		meta.Answers[i].Next = NormalizeName(meta.Answers[i].Next)
	}

	return meta, nil
}

// SavePageRecord rewrites the recorded state of a page.
func (t *Tree) SavePageRecord(name string, rec *PageRecord) error {
	return t.writeJSON(filepath.Join(PagesDir, name+recordExt), rec)
}

// DeletePageRecord removes the recorded state file of a page. Missing
// files are not an error.
func (t *Tree) DeletePageRecord(name string) error {
	abs, err := t.resolve(filepath.Join(PagesDir, name+recordExt))
	if err != nil {
		return err
	}

	err = os.Remove(abs)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing recorded state for page %s: %w", name, err)
	}
	return nil
}

// ResolveAsset turns an asset reference from page markup into an absolute
// filesystem path. References starting with "/" resolve against the tree
// root; relative references resolve against the directory of the page
// they appear on.
func (t *Tree) ResolveAsset(pageName, ref string) (string, error) {
	var rel string
	if strings.HasPrefix(ref, "/") {
		rel = strings.TrimPrefix(ref, "/")
	} else {
		rel = filepath.Join(PagesDir, filepath.Dir(pageName), ref)
	}
	return t.resolve(rel)
}

// ResolveConfigAsset resolves the labyrinth title-image reference. Config
// references are anchored at the tree root.
func (t *Tree) ResolveConfigAsset(ref string) (string, error) {
	return t.resolve(strings.TrimPrefix(ref, "/"))
}

// Scan walks the pages directory and builds the structural inventory of
// all page facets on disk. Recorded state files are decoded eagerly so
// the classifier can look up remote IDs.
func (t *Tree) Scan() (*Inventory, error) {
	inv := &Inventory{
		Content:  map[string]bool{},
		Metadata: map[string]bool{},
		Records:  map[string]PageRecord{},
	}

	pagesDir := filepath.Join(t.root, PagesDir)
	if _, err := os.Stat(pagesDir); os.IsNotExist(err) {
		return inv, nil
	}

	err := filepath.WalkDir(pagesDir, func(abs string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories (like .git) never hold page facets.
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(pagesDir, abs)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case strings.HasSuffix(rel, recordExt):
			name := NormalizeName(strings.TrimSuffix(rel, recordExt))
			rec, err := t.loadPageRecord(rel)
			if err != nil {
				return err
			}
			inv.Records[name] = *rec
		case strings.HasSuffix(rel, contentExt):
			inv.Content[NormalizeName(strings.TrimSuffix(rel, contentExt))] = true
		case strings.HasSuffix(rel, metaExt):
			inv.Metadata[NormalizeName(strings.TrimSuffix(rel, metaExt))] = true
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning pages directory: %w", err)
	}

	return inv, nil
}

func (t *Tree) loadPageRecord(rel string) (*PageRecord, error) {
	data, err := os.ReadFile(filepath.Join(t.root, PagesDir, rel))
	if err != nil {
		return nil, fmt.Errorf("reading recorded state %s: %w", rel, err)
	}

	rec := &PageRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decoding recorded state %s: %w", rel, err)
	}
	return rec, nil
}

func (t *Tree) readPageFile(name, ext string) ([]byte, error) {
	abs, err := t.resolve(filepath.Join(PagesDir, name+ext))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading page file %s%s: %w", name, ext, err)
	}
	return data, nil
}

func (t *Tree) writeJSON(rel string, v any) error {
	abs, err := t.resolve(rel)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rel, err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// resolve converts a relative path to an absolute path within the tree,
// rejecting traversal outside the root.
func (t *Tree) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	abs := filepath.Join(t.root, rel)
	if abs != t.root && !strings.HasPrefix(abs, t.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal blocked: %q resolves outside content tree", rel)
	}
	return abs, nil
}

// NormalizeName canonicalizes a logical page name: forward slashes,
// collapsed separators, no leading or trailing slash, Unicode NFC. Every
// name entering the system (scan results, answer targets, the firstPage
// reference) goes through this so lookups agree across platforms.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")

	var b strings.Builder
	prevSlash := false
	for _, r := range name {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	name = strings.Trim(b.String(), "/")

	return norm.NFC.String(name)
}
