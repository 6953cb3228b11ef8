// Package reconcile compares the local content tree against the recorded
// remote state and converges the remote labyrinth to match, one remote
// operation at a time. Recorded state is persisted after every single
// operation, so a crash or kill loses at most the in-flight operation and
// the next run resumes from what was committed.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nwerner/labsync/internal/assets"
	"github.com/nwerner/labsync/internal/classify"
	"github.com/nwerner/labsync/internal/content"
	"github.com/nwerner/labsync/internal/fingerprint"
	"github.com/nwerner/labsync/internal/gateway"
	"github.com/nwerner/labsync/internal/validate"
)

// ValidationError aborts a run before any remote mutation. It carries
// every collected issue, not just the first.
type ValidationError struct {
	Issues []validate.Issue
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Issues), strings.Join(lines, "\n  "))
}

// Summary counts what one run did and what failed. Failed entities are
// retried automatically on the next run because recorded state is only
// written on success.
type Summary struct {
	LabyrinthCreated bool
	LabyrinthUpdated bool

	Created    int
	Updated    int
	Unchanged  int
	Deleted    int
	Linked     int
	Incomplete int

	CreateFailed int
	UpdateFailed int
	DeleteFailed int
	LinkFailed   int
}

// Failed returns the total per-entity failure count.
func (s *Summary) Failed() int {
	return s.CreateFailed + s.UpdateFailed + s.DeleteFailed + s.LinkFailed
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSettleDelay sets the pause inserted between consecutive destructive
// remote operations, giving the site time to settle.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.settle = d }
}

// Reconciler drives one full sync of a content tree. It issues remote
// operations strictly one at a time; the browser-driven session is not
// safe for concurrent interaction.
type Reconciler struct {
	tree   *content.Tree
	gw     gateway.Gateway
	logger *slog.Logger
	settle time.Duration
}

// New creates a reconciler with the given dependencies.
func New(tree *content.Tree, gw gateway.Gateway, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		tree:   tree,
		gw:     gw,
		logger: logger,
		settle: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the full pipeline: classify, validate (hard gate), sync
// the labyrinth, delete stale and orphaned remote pages, create, update,
// and finally relink. Per-entity failures are counted and logged but
// never abort the run; labyrinth-level failures do.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}

	cfg, err := r.tree.LoadConfig()
	if err != nil {
		return sum, err
	}

	rec, err := r.tree.LoadRecord()
	if err != nil {
		return sum, err
	}

	inv, err := r.tree.Scan()
	if err != nil {
		return sum, err
	}

	cls := classify.Classify(inv, rec.KnownPageIDs)
	r.logClassification(cls, sum)

	metas, err := r.loadMetadata(cls)
	if err != nil {
		return sum, err
	}

	result := validate.Run(cfg, metas)
	for _, warning := range result.Warnings {
		r.logger.Warn("validation warning", slog.String("issue", warning.String()))
	}
	if !result.OK() {
		return sum, &ValidationError{Issues: result.Errors}
	}

	uploader := assets.NewUploader(r.tree, r.gw, rec.AssetCache, r.logger)

	// Phase 1: labyrinth sync. Every later phase needs its remote ID.
	if err := r.syncLabyrinth(ctx, cfg, rec, sum); err != nil {
		return sum, err
	}

	// records tracks recorded state as it changes through the run, so
	// the linking phase sees IDs assigned in this run.
	records := make(map[string]content.PageRecord, len(inv.Records))
	for name, pr := range inv.Records {
		records[name] = pr
	}

	// Phase 2: delete stale remote IDs and fold those pages into the
	// create set.
	newNames := cls.Names(classify.New)
	newNames = append(newNames, r.recreateStale(ctx, cls, rec, records, sum)...)
	sort.Strings(newNames)

	// Phase 3: orphaned and incomplete cleanup.
	r.cleanup(ctx, cls, rec, records, sum)

	touched := map[string]bool{}

	// Phase 4: create.
	r.createPages(ctx, newNames, cfg, metas, rec, records, uploader, touched, sum)

	// Phase 5: update changed pages.
	r.updatePages(ctx, cls.Names(classify.Normal), cfg, metas, rec, records, uploader, touched, sum)

	// Phase 6: relink.
	r.linkPages(ctx, metas, records, touched, sum)

	if err := r.tree.SaveRecord(rec); err != nil {
		return sum, err
	}

	r.logSummary(sum)

	return sum, nil
}

// Preview reports what a run would do without touching the remote side
// or writing any recorded state. The gateway is never called; a
// reconciler used only for previews may carry a nil gateway.
func (r *Reconciler) Preview(ctx context.Context) (*Summary, error) {
	sum := &Summary{}

	cfg, err := r.tree.LoadConfig()
	if err != nil {
		return sum, err
	}

	rec, err := r.tree.LoadRecord()
	if err != nil {
		return sum, err
	}

	inv, err := r.tree.Scan()
	if err != nil {
		return sum, err
	}

	cls := classify.Classify(inv, rec.KnownPageIDs)
	r.logClassification(cls, sum)

	metas, err := r.loadMetadata(cls)
	if err != nil {
		return sum, err
	}

	result := validate.Run(cfg, metas)
	for _, warning := range result.Warnings {
		r.logger.Warn("validation warning", slog.String("issue", warning.String()))
	}
	if !result.OK() {
		return sum, &ValidationError{Issues: result.Errors}
	}

	uploader := assets.NewUploader(r.tree, r.gw, rec.AssetCache, r.logger)

	if rec.RemoteID == "" {
		r.logger.Info("would create labyrinth", slog.String("title", cfg.Title))
		sum.LabyrinthCreated = true
	}

	create := append(cls.Names(classify.New), cls.Names(classify.RemoteIDMissing)...)
	sort.Strings(create)
	for _, name := range create {
		r.logger.Info("would create page", slog.String("page", name))
		sum.Created++
	}

	for _, name := range cls.Names(classify.Normal) {
		meta := metas[name]
		markup, sums, err := r.pageInputs(name, meta, uploader)
		if err != nil {
			r.logger.Warn("reading page failed",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			sum.UpdateFailed++
			continue
		}
		hash, err := fingerprint.Page(markup, meta, sums)
		if err != nil {
			sum.UpdateFailed++
			continue
		}

		prev := inv.Records[name]
		if hash == prev.ContentHash && prev.IsFirst == (name == cfg.FirstPage) {
			sum.Unchanged++
			continue
		}
		r.logger.Info("would update page", slog.String("page", name))
		sum.Updated++
	}

	for _, id := range cls.Orphans {
		r.logger.Info("would delete orphaned remote page", slog.String("id", id))
		sum.Deleted++
	}
	for _, name := range cls.Names(classify.Residual) {
		r.logger.Info("would remove residual recorded state", slog.String("page", name))
	}

	return sum, nil
}

// loadMetadata decodes the metadata facet of every complete page. These
// are the pages the validator and the sync phases operate on.
func (r *Reconciler) loadMetadata(cls classify.Classification) (map[string]*content.PageMeta, error) {
	metas := map[string]*content.PageMeta{}

	for name, state := range cls.Pages {
		switch state {
		case classify.Normal, classify.New, classify.RemoteIDMissing:
			meta, err := r.tree.PageMeta(name)
			if err != nil {
				return nil, err
			}
			metas[name] = meta
		}
	}

	return metas, nil
}

func (r *Reconciler) logClassification(cls classify.Classification, sum *Summary) {
	for _, name := range cls.Names(classify.MetadataMissing) {
		sum.Incomplete++
		r.logger.Warn("page has content but no metadata, skipping", slog.String("page", name))
	}
	for _, name := range cls.Names(classify.ContentMissing) {
		sum.Incomplete++
		r.logger.Warn("page has metadata but no content, skipping", slog.String("page", name))
	}

	r.logger.Info("classification complete",
		slog.Int("normal", len(cls.Names(classify.Normal))),
		slog.Int("new", len(cls.Names(classify.New))),
		slog.Int("recreate", len(cls.Names(classify.RemoteIDMissing))),
		slog.Int("residual", len(cls.Names(classify.Residual))),
		slog.Int("incomplete", sum.Incomplete),
		slog.Int("orphans", len(cls.Orphans)),
	)
}

// syncLabyrinth is phase 1: create the labyrinth on first run, update it
// when the config fingerprint changed, otherwise leave it alone. Failure
// here is fatal; no page work can proceed without a labyrinth ID.
func (r *Reconciler) syncLabyrinth(ctx context.Context, cfg *content.LabyrinthConfig, rec *content.LabyrinthRecord, sum *Summary) error {
	var imagePath, imageSum string

	if cfg.Image != "" {
		path, err := r.tree.ResolveConfigAsset(cfg.Image)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading labyrinth image %s: %w", cfg.Image, err)
		}
		imagePath = path
		imageSum = fingerprint.Checksum(data)
	}

	hash, err := fingerprint.Labyrinth(cfg, imageSum)
	if err != nil {
		return err
	}

	upload := gateway.LabyrinthUpload{
		Title:       cfg.Title,
		Description: cfg.Description,
		Tags:        cfg.Tags,
		ImagePath:   imagePath,
		Settings:    cfg.Settings.FormValues(),
	}

	switch {
	case rec.RemoteID == "":
		r.logger.Info("creating labyrinth", slog.String("title", cfg.Title))

		id, err := r.gw.CreateLabyrinth(ctx, upload)
		if err != nil {
			return fmt.Errorf("creating labyrinth: %w", err)
		}

		rec.RemoteID = id
		rec.ConfigHash = hash
		sum.LabyrinthCreated = true

	case rec.ConfigHash != hash:
		r.logger.Info("updating labyrinth", slog.String("id", rec.RemoteID))

		if err := r.gw.UpdateLabyrinth(ctx, rec.RemoteID, upload); err != nil {
			return fmt.Errorf("updating labyrinth: %w", err)
		}

		rec.ConfigHash = hash
		sum.LabyrinthUpdated = true

	default:
		r.logger.Debug("labyrinth unchanged")
		return nil
	}

	return r.tree.SaveRecord(rec)
}

// recreateStale is phase 2: pages whose recorded remote ID vanished from
// the known inventory get their stale remote page deleted and are folded
// into the create set. A failed delete keeps the page's recorded state so
// the next run retries.
func (r *Reconciler) recreateStale(ctx context.Context, cls classify.Classification, rec *content.LabyrinthRecord, records map[string]content.PageRecord, sum *Summary) []string {
	var recreate []string

	for _, name := range cls.Names(classify.RemoteIDMissing) {
		stale := records[name].RemoteID

		if stale != "" {
			if !r.deleteRemote(ctx, rec, stale, "page "+name, sum) {
				continue
			}
		}

		if err := r.tree.DeletePageRecord(name); err != nil {
			r.logger.Warn("clearing recorded state failed",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			sum.DeleteFailed++
			continue
		}
		delete(records, name)

		if err := r.saveRecord(rec); err != nil {
			sum.DeleteFailed++
			continue
		}

		r.logger.Info("stale remote page cleared, scheduling recreate", slog.String("page", name))
		recreate = append(recreate, name)
	}

	return recreate
}

// cleanup is phase 3: delete orphaned remote IDs and the remote pages and
// recorded state of structurally incomplete entries.
func (r *Reconciler) cleanup(ctx context.Context, cls classify.Classification, rec *content.LabyrinthRecord, records map[string]content.PageRecord, sum *Summary) {
	dropRecord := func(name string) {
		pr, ok := records[name]
		if !ok {
			return
		}

		if pr.RemoteID != "" && rec.HasPageID(pr.RemoteID) {
			// Removal from knownPageIds only happens on success; a hard
			// failure leaves the ID behind as an orphan for the next run.
			r.deleteRemote(ctx, rec, pr.RemoteID, "page "+name, sum)
		}

		if err := r.tree.DeletePageRecord(name); err != nil {
			r.logger.Warn("removing recorded state failed",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			return
		}
		delete(records, name)

		_ = r.saveRecord(rec)
	}

	for _, name := range cls.Names(classify.MetadataMissing) {
		dropRecord(name)
	}
	for _, name := range cls.Names(classify.ContentMissing) {
		dropRecord(name)
	}
	for _, name := range cls.Names(classify.Residual) {
		r.logger.Info("removing residual recorded state", slog.String("page", name))
		dropRecord(name)
	}

	for _, id := range cls.Orphans {
		r.logger.Info("deleting orphaned remote page", slog.String("id", id))
		if r.deleteRemote(ctx, rec, id, "orphan", sum) {
			_ = r.saveRecord(rec)
		}
	}
}

// deleteRemote issues one remote page deletion and maintains the known
// inventory. A not-found result counts as deleted. Returns false only on
// a hard failure, which is counted and leaves the inventory untouched so
// the next run retries.
func (r *Reconciler) deleteRemote(ctx context.Context, rec *content.LabyrinthRecord, remoteID, what string, sum *Summary) bool {
	found, err := r.gw.DeletePage(ctx, rec.RemoteID, remoteID)
	if err != nil {
		r.logger.Warn("remote delete failed",
			slog.String("entity", what),
			slog.String("id", remoteID),
			slog.String("error", err.Error()),
		)
		sum.DeleteFailed++
		return false
	}

	if !found {
		r.logger.Debug("remote page already gone", slog.String("id", remoteID))
	}

	rec.RemovePageID(remoteID)
	sum.Deleted++

	r.pause(ctx)

	return true
}

// createPages is phase 4. Every page is independent until linking, so a
// failed create is logged and the run moves on; recorded state and the
// asset cache are persisted after every single page.
func (r *Reconciler) createPages(ctx context.Context, names []string, cfg *content.LabyrinthConfig, metas map[string]*content.PageMeta, rec *content.LabyrinthRecord, records map[string]content.PageRecord, uploader *assets.Uploader, touched map[string]bool, sum *Summary) {
	for _, name := range names {
		pr, ok := r.submitPage(ctx, name, "", cfg, metas[name], rec, uploader)
		if !ok {
			sum.CreateFailed++
			continue
		}

		if err := r.tree.SavePageRecord(name, pr); err != nil {
			r.logger.Error("persisting recorded state failed",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			sum.CreateFailed++
			continue
		}
		records[name] = *pr

		rec.AddPageID(pr.RemoteID)
		if err := r.saveRecord(rec); err != nil {
			sum.CreateFailed++
			continue
		}

		touched[name] = true
		sum.Created++
		r.logger.Info("page created",
			slog.String("page", name),
			slog.String("id", pr.RemoteID),
		)
	}
}

// updatePages is phase 5: pages classified normal whose fingerprint (or
// first-page flag) changed get a full remote replace.
func (r *Reconciler) updatePages(ctx context.Context, names []string, cfg *content.LabyrinthConfig, metas map[string]*content.PageMeta, rec *content.LabyrinthRecord, records map[string]content.PageRecord, uploader *assets.Uploader, touched map[string]bool, sum *Summary) {
	for _, name := range names {
		prev := records[name]
		meta := metas[name]

		markup, sums, err := r.pageInputs(name, meta, uploader)
		if err != nil {
			r.logger.Warn("reading page failed",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			sum.UpdateFailed++
			continue
		}

		hash, err := fingerprint.Page(markup, meta, sums)
		if err != nil {
			sum.UpdateFailed++
			continue
		}

		isFirst := name == cfg.FirstPage
		if hash == prev.ContentHash && prev.IsFirst == isFirst {
			sum.Unchanged++
			continue
		}

		pr, ok := r.submitPage(ctx, name, prev.RemoteID, cfg, meta, rec, uploader)
		if !ok {
			sum.UpdateFailed++
			continue
		}

		if err := r.tree.SavePageRecord(name, pr); err != nil {
			r.logger.Error("persisting recorded state failed",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			sum.UpdateFailed++
			continue
		}
		records[name] = *pr
		_ = r.saveRecord(rec)

		touched[name] = true
		sum.Updated++
		r.logger.Info("page updated",
			slog.String("page", name),
			slog.String("id", pr.RemoteID),
		)
	}
}

// pageInputs loads a page's markup and the checksums of every asset it
// references from content and answer explanations.
func (r *Reconciler) pageInputs(name string, meta *content.PageMeta, uploader *assets.Uploader) (string, []string, error) {
	markup, err := r.tree.PageContent(name)
	if err != nil {
		return "", nil, err
	}

	sums, err := uploader.Checksums(name, markup)
	if err != nil {
		return "", nil, err
	}
	for _, answer := range meta.Answers {
		if answer.Explanation == "" {
			continue
		}
		explSums, err := uploader.Checksums(name, answer.Explanation)
		if err != nil {
			return "", nil, err
		}
		sums = append(sums, explSums...)
	}

	return markup, sums, nil
}

// submitPage uploads referenced assets, substitutes their URLs, and
// submits the page for creation (remoteID empty) or update. Returns the
// recorded state to persist, or ok=false on any non-fatal failure.
func (r *Reconciler) submitPage(ctx context.Context, name, remoteID string, cfg *content.LabyrinthConfig, meta *content.PageMeta, rec *content.LabyrinthRecord, uploader *assets.Uploader) (*content.PageRecord, bool) {
	markup, sums, err := r.pageInputs(name, meta, uploader)
	if err != nil {
		r.logger.Warn("reading page failed",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	fail := func(err error) (*content.PageRecord, bool) {
		r.logger.Warn("submitting page failed",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		// Assets uploaded before the failure stay cached.
		_ = r.saveRecord(rec)
		return nil, false
	}

	rewritten, err := uploader.Rewrite(ctx, name, markup)
	if err != nil {
		return fail(err)
	}

	ending, _ := meta.Ending()
	isFirst := name == cfg.FirstPage

	upload := gateway.PageUpload{
		Title:           meta.Title,
		Content:         rewritten,
		BackgroundColor: meta.BackgroundColor,
		HeaderDisplay:   meta.HeaderDisplay,
		Hint:            meta.Hint,
		IsFirst:         isFirst,
		IsEnding:        ending,
	}

	for _, answer := range meta.Answers {
		explanation := answer.Explanation
		if explanation != "" {
			explanation, err = uploader.Rewrite(ctx, name, explanation)
			if err != nil {
				return fail(err)
			}
		}
		upload.Answers = append(upload.Answers, gateway.AnswerUpload{
			Text:        answer.Text,
			IsPublic:    answer.IsPublic,
			Explanation: explanation,
		})
	}

	if remoteID == "" {
		id, err := r.gw.CreatePage(ctx, rec.RemoteID, upload)
		if err != nil {
			return fail(err)
		}
		if id == "" {
			return fail(fmt.Errorf("site did not report a page ID"))
		}
		remoteID = id
	} else {
		if err := r.gw.UpdatePage(ctx, remoteID, upload); err != nil {
			return fail(err)
		}
	}

	hash, err := fingerprint.Page(markup, meta, sums)
	if err != nil {
		return fail(err)
	}

	return &content.PageRecord{
		RemoteID:    remoteID,
		ContentHash: hash,
		IsFirst:     isFirst,
		IsEnding:    ending,
	}, true
}

// edge is one directed answer link, kept by the remote IDs involved.
type edge struct {
	sourceID string
	position int
}

// linkPages is phase 6: recompute the full edge set over all pages with a
// remote ID and replace each target's stored predecessor set with exactly
// the computed sources (clear-then-set, never additive). When nothing was
// created or updated this run the edge sets cannot have changed and no
// link operation is issued.
func (r *Reconciler) linkPages(ctx context.Context, metas map[string]*content.PageMeta, records map[string]content.PageRecord, touched map[string]bool, sum *Summary) {
	if len(touched) == 0 {
		r.logger.Debug("no pages touched, skipping relink")
		return
	}

	sources := make([]string, 0, len(records))
	for name := range records {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	edges := map[string][]edge{}
	for _, name := range sources {
		meta, ok := metas[name]
		if !ok || records[name].RemoteID == "" {
			continue
		}
		for i, answer := range meta.Answers {
			if answer.Next == "" {
				continue
			}
			target, ok := records[answer.Next]
			if !ok || target.RemoteID == "" {
				continue
			}
			// Answer positions are 1-based on the remote side.
			edges[target.RemoteID] = append(edges[target.RemoteID], edge{
				sourceID: records[name].RemoteID,
				position: i + 1,
			})
		}
	}

	for _, name := range sources {
		targetID := records[name].RemoteID
		if targetID == "" {
			continue
		}

		if err := r.gw.ClearPredecessorLinks(ctx, targetID); err != nil {
			r.logger.Warn("clearing predecessor links failed",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			sum.LinkFailed++
			continue
		}

		failed := false
		for _, e := range edges[targetID] {
			ok, err := r.gw.SetPredecessorLink(ctx, targetID, e.sourceID, e.position)
			if err != nil || !ok {
				if err != nil {
					r.logger.Warn("setting predecessor link failed",
						slog.String("page", name),
						slog.String("source", e.sourceID),
						slog.String("error", err.Error()),
					)
				} else {
					r.logger.Warn("site rejected predecessor link",
						slog.String("page", name),
						slog.String("source", e.sourceID),
					)
				}
				failed = true
			}
		}

		if failed {
			sum.LinkFailed++
			continue
		}
		sum.Linked++
	}
}

// saveRecord persists the labyrinth record, logging instead of failing;
// callers that need failure semantics check the returned error.
func (r *Reconciler) saveRecord(rec *content.LabyrinthRecord) error {
	if err := r.tree.SaveRecord(rec); err != nil {
		r.logger.Error("persisting labyrinth record failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// pause waits the settle delay between consecutive destructive remote
// operations.
func (r *Reconciler) pause(ctx context.Context) {
	if r.settle <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(r.settle):
	}
}

func (r *Reconciler) logSummary(sum *Summary) {
	r.logger.Info("run complete",
		slog.Int("created", sum.Created),
		slog.Int("updated", sum.Updated),
		slog.Int("unchanged", sum.Unchanged),
		slog.Int("deleted", sum.Deleted),
		slog.Int("linked", sum.Linked),
		slog.Int("incomplete", sum.Incomplete),
		slog.Int("failed", sum.Failed()),
	)
	if sum.Failed() > 0 {
		r.logger.Warn("some operations failed; they will be retried on the next run",
			slog.Int("create", sum.CreateFailed),
			slog.Int("update", sum.UpdateFailed),
			slog.Int("delete", sum.DeleteFailed),
			slog.Int("link", sum.LinkFailed),
		)
	}
}
