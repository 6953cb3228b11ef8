// Package gateway defines the remote operations the reconciler drives
// and provides the browser-automation implementation for the labyrinth
// CMS, which exposes no programmatic API. Every operation is a single,
// independent, fallible round trip; there is no batching and no
// transaction.
package gateway

import "context"

//go:generate mockgen -source=gateway.go -destination=mock_gateway.go -package=gateway

// AnswerUpload is one answer choice as submitted to the remote form.
// Explanation markup has asset URLs already substituted.
type AnswerUpload struct {
	Text        string
	IsPublic    bool
	Explanation string
}

// PageUpload is the full remote representation of one page. Content has
// asset URLs already substituted.
type PageUpload struct {
	Title           string
	Content         string
	BackgroundColor string
	HeaderDisplay   string
	Hint            string
	IsFirst         bool
	IsEnding        bool
	Answers         []AnswerUpload
}

// LabyrinthUpload is the remote representation of the labyrinth config.
// ImagePath is the local filesystem path of the title image; the gateway
// submits it through the form's file input.
type LabyrinthUpload struct {
	Title       string
	Description string
	Tags        []string
	ImagePath   string
	Settings    map[string]string
}

// Gateway is the remote surface the reconciler depends on. Implementations
// must tag failures with an error Kind (see Error) so callers can retry
// transient failures without inspecting error text.
type Gateway interface {
	// CreateLabyrinth submits a new labyrinth and returns its remote ID.
	// Failing to extract an ID from the response is an error.
	CreateLabyrinth(ctx context.Context, lab LabyrinthUpload) (string, error)

	// UpdateLabyrinth replaces the config of an existing labyrinth.
	UpdateLabyrinth(ctx context.Context, remoteID string, lab LabyrinthUpload) error

	// CreatePage submits a new page under the labyrinth. An empty ID with
	// a nil error means the site accepted the submission but no ID could
	// be determined; the caller treats this as a non-fatal per-page
	// failure.
	CreatePage(ctx context.Context, labyrinthID string, page PageUpload) (string, error)

	// UpdatePage replaces content, metadata and answers of a page.
	UpdatePage(ctx context.Context, remoteID string, page PageUpload) error

	// DeletePage removes a page. Returns false with a nil error when the
	// site reports the page as not found; callers treat that as already
	// deleted.
	DeletePage(ctx context.Context, labyrinthID, remoteID string) (bool, error)

	// SetPredecessorLink records on the target page that the given answer
	// position of the source page leads to it. Returns false with a nil
	// error when the site rejected the link non-fatally.
	SetPredecessorLink(ctx context.Context, targetID, sourceID string, answerPosition int) (bool, error)

	// ClearPredecessorLinks removes every stored predecessor of the
	// target page.
	ClearPredecessorLinks(ctx context.Context, targetID string) error

	// UploadAsset uploads a local file and returns its public URL. An
	// empty URL with a nil error means the upload went through but no URL
	// could be determined.
	UploadAsset(ctx context.Context, localPath string) (string, error)
}
