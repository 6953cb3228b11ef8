package classify

import (
	"testing"

	"github.com/nwerner/labsync/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inventory(contentNames, metaNames []string, records map[string]string) *content.Inventory {
	inv := &content.Inventory{
		Content:  map[string]bool{},
		Metadata: map[string]bool{},
		Records:  map[string]content.PageRecord{},
	}
	for _, n := range contentNames {
		inv.Content[n] = true
	}
	for _, n := range metaNames {
		inv.Metadata[n] = true
	}
	for n, id := range records {
		inv.Records[n] = content.PageRecord{RemoteID: id, ContentHash: "h"}
	}
	return inv
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		content []string
		meta    []string
		records map[string]string
		known   []string
		want    map[string]State
		orphans []string
	}{
		{
			name: "empty tree",
			want: map[string]State{},
		},
		{
			name:    "complete tracked page is normal",
			content: []string{"start"},
			meta:    []string{"start"},
			records: map[string]string{"start": "p1"},
			known:   []string{"p1"},
			want:    map[string]State{"start": Normal},
		},
		{
			name:    "both facets, no record -> new",
			content: []string{"start"},
			meta:    []string{"start"},
			want:    map[string]State{"start": New},
		},
		{
			name:    "content without metadata",
			content: []string{"start"},
			want:    map[string]State{"start": MetadataMissing},
		},
		{
			name: "metadata without content",
			meta: []string{"start"},
			want: map[string]State{"start": ContentMissing},
		},
		{
			name:    "incomplete page keeps its incomplete state even with a record",
			content: []string{"start"},
			records: map[string]string{"start": "p1"},
			known:   []string{"p1"},
			want:    map[string]State{"start": MetadataMissing},
		},
		{
			name:    "record whose remote ID left the inventory",
			content: []string{"start"},
			meta:    []string{"start"},
			records: map[string]string{"start": "p1"},
			known:   []string{},
			want:    map[string]State{"start": RemoteIDMissing},
		},
		{
			name:    "record with empty remote ID",
			content: []string{"start"},
			meta:    []string{"start"},
			records: map[string]string{"start": ""},
			known:   []string{},
			want:    map[string]State{"start": RemoteIDMissing},
		},
		{
			name:    "record with no author facets is residual",
			records: map[string]string{"gone": "p9"},
			known:   []string{"p9"},
			want:    map[string]State{"gone": Residual},
		},
		{
			name:  "known ID with no record is an orphan",
			known: []string{"p3", "p1"},
			want:  map[string]State{},
			// Sorted for deterministic deletion order.
			orphans: []string{"p1", "p3"},
		},
		{
			name:    "incomplete page's recorded ID is not an orphan",
			content: []string{"half"},
			records: map[string]string{"half": "p5"},
			known:   []string{"p5"},
			want:    map[string]State{"half": MetadataMissing},
		},
		{
			name:    "mixed tree",
			content: []string{"start", "cave", "lost"},
			meta:    []string{"start", "cave", "solo"},
			records: map[string]string{"start": "p1", "cave": "p2", "dead": "p4"},
			known:   []string{"p1", "p2", "p4", "p9"},
			want: map[string]State{
				"start": Normal,
				"cave":  Normal,
				"lost":  MetadataMissing,
				"solo":  ContentMissing,
				"dead":  Residual,
			},
			orphans: []string{"p9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(inventory(tt.content, tt.meta, tt.records), tt.known)
			assert.Equal(t, tt.want, got.Pages)
			assert.Equal(t, tt.orphans, got.Orphans)
		})
	}
}

// Every page name lands in exactly one state: the partition is total and
// disjoint by construction of the Pages map; this guards the property
// over a tree exercising all six states at once.
func TestClassify_PartitionIsTotal(t *testing.T) {
	inv := inventory(
		[]string{"a", "b", "c", "d"},
		[]string{"a", "b", "d", "e"},
		map[string]string{"a": "p1", "d": "p2", "f": "p3"},
	)
	cls := Classify(inv, []string{"p1", "p3", "p9"})

	seen := map[string]bool{}
	for _, s := range []State{Normal, New, MetadataMissing, ContentMissing, RemoteIDMissing, Residual} {
		for _, name := range cls.Names(s) {
			require.False(t, seen[name], "page %s classified twice", name)
			seen[name] = true
		}
	}

	for name := range inv.Content {
		assert.True(t, seen[name], "content page %s unclassified", name)
	}
	for name := range inv.Metadata {
		assert.True(t, seen[name], "metadata page %s unclassified", name)
	}
	for name := range inv.Records {
		assert.True(t, seen[name], "recorded page %s unclassified", name)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "normal", Normal.String())
	assert.Equal(t, "new", New.String())
	assert.Equal(t, "metadata-missing", MetadataMissing.String())
	assert.Equal(t, "content-missing", ContentMissing.String())
	assert.Equal(t, "remote-id-missing", RemoteIDMissing.String())
	assert.Equal(t, "residual", Residual.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestNames_Sorted(t *testing.T) {
	inv := inventory([]string{"zebra", "alpha", "mid"}, []string{"zebra", "alpha", "mid"}, nil)
	cls := Classify(inv, nil)
	assert.Equal(t, []string{"alpha", "mid", "zebra"}, cls.Names(New))
}
