package content

import (
	"bytes"
	"encoding/json"
)

// Answer is one choice on a page. Next, when set, names another page by
// its logical name. Explanation is markup shown after the answer is
// picked and may reference image assets of its own.
type Answer struct {
	Text        string `json:"text"`
	Next        string `json:"next,omitempty"`
	IsPublic    bool   `json:"isPublic,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// PageMeta is the author-edited metadata facet of a page.
//
// IsEnding is kept as the raw JSON token so that a non-boolean value can
// be surfaced as a validation warning instead of a decode failure.
type PageMeta struct {
	Title           string          `json:"title"`
	BackgroundColor string          `json:"backgroundColor,omitempty"`
	HeaderDisplay   string          `json:"headerDisplay,omitempty"`
	Hint            string          `json:"hint,omitempty"`
	IsEnding        json.RawMessage `json:"isEnding,omitempty"`
	Answers         []Answer        `json:"answers,omitempty"`
}

// Ending reports the isEnding flag. ok is false when the field is absent
// or not a plain JSON boolean.
func (m *PageMeta) Ending() (value, ok bool) {
	switch string(bytes.TrimSpace(m.IsEnding)) {
	case "true":
		return true, true
	case "false":
		return false, true
	case "":
		return false, true
	default:
		return false, false
	}
}

// Settings holds the labyrinth presentation options. All fields have
// documented defaults applied by DefaultSettings; decoding author config
// on top of the defaults means absent keys keep their default value.
type Settings struct {
	ShowProgress       bool   `json:"showProgress"`       // default true
	ShowHints          bool   `json:"showHints"`          // default true
	AllowBack          bool   `json:"allowBack"`          // default true
	ShuffleAnswers     bool   `json:"shuffleAnswers"`     // default false
	ShowPageNumbers    bool   `json:"showPageNumbers"`    // default false
	ShowAuthor         bool   `json:"showAuthor"`         // default false
	RequireLogin       bool   `json:"requireLogin"`       // default false
	AllowComments      bool   `json:"allowComments"`      // default false
	ShowEndingSummary  bool   `json:"showEndingSummary"`  // default true
	CompactLayout      bool   `json:"compactLayout"`      // default false
	HighlightSolutions bool   `json:"highlightSolutions"` // default false
	FontSize           string `json:"fontSize"`           // small|medium|large, default medium
	AnswerStyle        string `json:"answerStyle"`        // list|buttons, default buttons
	Theme              string `json:"theme"`              // light|dark|auto, default auto
	HeaderDisplay      string `json:"headerDisplay"`      // title|image|none, default title
}

// FormValues flattens the settings into the key/value pairs the remote
// form expects. Booleans become "true"/"false", enums pass through.
func (s Settings) FormValues() map[string]string {
	b := func(v bool) string {
		if v {
			return "true"
		}
		return "false"
	}
	return map[string]string{
		"showProgress":       b(s.ShowProgress),
		"showHints":          b(s.ShowHints),
		"allowBack":          b(s.AllowBack),
		"shuffleAnswers":     b(s.ShuffleAnswers),
		"showPageNumbers":    b(s.ShowPageNumbers),
		"showAuthor":         b(s.ShowAuthor),
		"requireLogin":       b(s.RequireLogin),
		"allowComments":      b(s.AllowComments),
		"showEndingSummary":  b(s.ShowEndingSummary),
		"compactLayout":      b(s.CompactLayout),
		"highlightSolutions": b(s.HighlightSolutions),
		"fontSize":           s.FontSize,
		"answerStyle":        s.AnswerStyle,
		"theme":              s.Theme,
		"headerDisplay":      s.HeaderDisplay,
	}
}

// DefaultSettings returns the presentation defaults applied when the
// author config omits a key.
func DefaultSettings() Settings {
	return Settings{
		ShowProgress:      true,
		ShowHints:         true,
		AllowBack:         true,
		ShowEndingSummary: true,
		FontSize:          "medium",
		AnswerStyle:       "buttons",
		Theme:             "auto",
		HeaderDisplay:     "title",
	}
}

// LabyrinthConfig is the author-edited root configuration of a labyrinth.
type LabyrinthConfig struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Image       string   `json:"image,omitempty"`
	FirstPage   string   `json:"firstPage"`
	Settings    Settings `json:"settings"`
}

// LabyrinthRecord is the engine-owned recorded remote state of the
// labyrinth. It is rewritten after every mutating phase of a run.
type LabyrinthRecord struct {
	RemoteID     string            `json:"remoteId,omitempty"`
	ConfigHash   string            `json:"configHash,omitempty"`
	KnownPageIDs []string          `json:"knownPageIds"`
	AssetCache   map[string]string `json:"assetCache"`
}

// HasPageID reports whether the remote page ID is part of the known
// remote inventory.
func (r *LabyrinthRecord) HasPageID(id string) bool {
	for _, known := range r.KnownPageIDs {
		if known == id {
			return true
		}
	}
	return false
}

// AddPageID appends id to the known remote inventory if absent.
func (r *LabyrinthRecord) AddPageID(id string) {
	if !r.HasPageID(id) {
		r.KnownPageIDs = append(r.KnownPageIDs, id)
	}
}

// RemovePageID drops id from the known remote inventory.
func (r *LabyrinthRecord) RemovePageID(id string) {
	out := r.KnownPageIDs[:0]
	for _, known := range r.KnownPageIDs {
		if known != id {
			out = append(out, known)
		}
	}
	r.KnownPageIDs = out
}

// PageRecord is the engine-owned recorded remote state of one page,
// written the moment a remote create succeeds and refreshed after every
// successful update.
type PageRecord struct {
	RemoteID    string `json:"remoteId"`
	ContentHash string `json:"contentHash"`
	IsFirst     bool   `json:"isFirst"`
	IsEnding    bool   `json:"isEnding"`
}

// Inventory is the structural view of the content tree the classifier
// consumes: which logical page names have which facets on disk.
type Inventory struct {
	// Content holds names with a content (.html) facet.
	Content map[string]bool
	// Metadata holds names with a metadata (.json) facet.
	Metadata map[string]bool
	// Records holds the recorded state of names with a .sync.json facet.
	Records map[string]PageRecord
}
