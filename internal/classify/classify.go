// Package classify partitions every known page name and every known
// remote page ID into exactly one sync state. Classification looks only
// at structural presence (which facets exist, whether the recorded remote
// ID is part of the known inventory); fingerprint comparison happens
// later and only for pages classified Normal.
package classify

import (
	"sort"

	"github.com/nwerner/labsync/internal/content"
)

// State is the sync state of one page name. Each page lands in exactly
// one state; the mapping from state to required action is owned by the
// reconciler.
type State int

const (
	// Normal: content, metadata and recorded state all present, and the
	// recorded remote ID is part of the known inventory. Updated iff the
	// fingerprint changed, otherwise a no-op.
	Normal State = iota

	// New: content and metadata present, no recorded state. Created.
	New

	// MetadataMissing: content present, metadata facet missing. Skipped
	// with a warning; any recorded state is cleaned up.
	MetadataMissing

	// ContentMissing: metadata present, content facet missing. Same
	// handling as MetadataMissing.
	ContentMissing

	// RemoteIDMissing: complete page with recorded state whose remote ID
	// is not in the known inventory. The stale ID is deleted remotely,
	// the recorded state cleared, and the page recreated.
	RemoteIDMissing

	// Residual: recorded state exists but both author facets are gone.
	// The remote page is deleted if still known; the recorded state file
	// is always removed.
	Residual
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case New:
		return "new"
	case MetadataMissing:
		return "metadata-missing"
	case ContentMissing:
		return "content-missing"
	case RemoteIDMissing:
		return "remote-id-missing"
	case Residual:
		return "residual"
	default:
		return "unknown"
	}
}

// Classification is the disjoint partition of all page names and all
// known remote IDs.
type Classification struct {
	// Pages maps every known page name to its single state.
	Pages map[string]State
	// Orphans are remote IDs in the known inventory that no recorded
	// state maps to. Sorted for deterministic deletion order.
	Orphans []string
}

// Names returns the sorted page names currently in the given state.
func (c Classification) Names(s State) []string {
	var names []string
	for name, got := range c.Pages {
		if got == s {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Classify produces the partition from the structural inventory and the
// labyrinth's known remote page IDs. It is a pure function: no I/O, no
// fingerprints, no ordering dependence.
func Classify(inv *content.Inventory, knownPageIDs []string) Classification {
	known := make(map[string]bool, len(knownPageIDs))
	for _, id := range knownPageIDs {
		known[id] = true
	}

	names := map[string]bool{}
	for name := range inv.Content {
		names[name] = true
	}
	for name := range inv.Metadata {
		names[name] = true
	}
	for name := range inv.Records {
		names[name] = true
	}

	result := Classification{Pages: make(map[string]State, len(names))}
	recordedIDs := map[string]bool{}

	for name := range names {
		hasContent := inv.Content[name]
		hasMeta := inv.Metadata[name]
		rec, hasRecord := inv.Records[name]

		if hasRecord && rec.RemoteID != "" {
			recordedIDs[rec.RemoteID] = true
		}

		switch {
		case hasContent && !hasMeta:
			result.Pages[name] = MetadataMissing
		case !hasContent && hasMeta:
			result.Pages[name] = ContentMissing
		case !hasContent && !hasMeta:
			result.Pages[name] = Residual
		case !hasRecord:
			result.Pages[name] = New
		case rec.RemoteID != "" && known[rec.RemoteID]:
			result.Pages[name] = Normal
		default:
			result.Pages[name] = RemoteIDMissing
		}
	}

	for _, id := range knownPageIDs {
		if !recordedIDs[id] {
			result.Orphans = append(result.Orphans, id)
		}
	}
	sort.Strings(result.Orphans)

	return result
}
