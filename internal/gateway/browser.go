package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/nwerner/labsync/internal/session"
	"github.com/tidwall/gjson"
)

// Config holds the browser gateway settings.
type Config struct {
	// BaseURL is the root of the remote CMS, e.g. https://labyrinth.example.
	BaseURL string
	// Username and Password for the login form.
	Username string
	Password string
	// Headless controls whether the browser window is shown. Interactive
	// mode helps when the site throws an unexpected dialog.
	Headless bool
	// NavTimeout bounds every navigation and element lookup.
	NavTimeout time.Duration
}

// Browser drives the remote CMS through its HTML forms. One Browser owns
// one logged-in session and one tab; it is not safe for concurrent use,
// matching the reconciler's strictly sequential operation model.
type Browser struct {
	cfg      Config
	logger   *slog.Logger
	sessions *session.Store
	host     string

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// Connect launches the browser and opens a blank tab. Cached cookies for
// the site host, if any, are installed so Login can skip the form.
func Connect(ctx context.Context, cfg Config, sessions *session.Store, logger *slog.Logger) (*Browser, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}

	l := launcher.New().Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, wrapErr(KindTransient, "launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, wrapErr(KindTransient, "connect browser", err)
	}

	b := &Browser{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		host:     parsed.Host,
		launcher: l,
		browser:  browser,
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		b.Close()
		return nil, wrapErr(KindTransient, "open tab", err)
	}
	b.page = page

	b.restoreCookies()

	return b, nil
}

// Close logs nothing out; it just tears the browser down. Cookies were
// already persisted after login.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return err
}

// Login establishes a session. A cached cookie session is tried first;
// when the site still shows the login form, credentials are submitted.
func (b *Browser) Login(ctx context.Context) error {
	const op = "login"

	if err := b.open(op, "/"); err != nil {
		return err
	}

	if b.has(".user-menu") {
		b.logger.Info("reusing cached session")
		return nil
	}

	b.logger.Info("signing in", slog.String("user", b.cfg.Username))

	if err := b.open(op, "/login"); err != nil {
		return err
	}

	if err := b.fill(op, `#login-form input[name="username"]`, b.cfg.Username); err != nil {
		return wrapErr(KindAuth, op, err)
	}
	if err := b.fill(op, `#login-form input[name="password"]`, b.cfg.Password); err != nil {
		return wrapErr(KindAuth, op, err)
	}
	if err := b.click(op, `#login-form button[type="submit"]`); err != nil {
		return wrapErr(KindAuth, op, err)
	}

	if b.has(".flash-error") || !b.has(".user-menu") {
		if b.sessions != nil {
			_ = b.sessions.Clear(b.host)
		}
		return wrapErr(KindAuth, op, fmt.Errorf("site rejected the credentials"))
	}

	b.persistCookies()

	return nil
}

// Logout ends the remote session and drops the cached cookies.
func (b *Browser) Logout(ctx context.Context) error {
	const op = "logout"

	if err := b.open(op, "/logout"); err != nil {
		return err
	}
	if b.sessions != nil {
		_ = b.sessions.Clear(b.host)
	}
	return nil
}

func (b *Browser) CreateLabyrinth(ctx context.Context, lab LabyrinthUpload) (string, error) {
	const op = "create labyrinth"

	if err := b.open(op, "/labyrinths/new"); err != nil {
		return "", err
	}
	if err := b.fillLabyrinthForm(op, lab); err != nil {
		return "", err
	}
	if err := b.click(op, `#labyrinth-form button[type="submit"]`); err != nil {
		return "", err
	}

	id, err := b.appData(op, "labyrinth.id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", wrapErr(KindRemote, op, fmt.Errorf("no labyrinth ID in response"))
	}
	return id, nil
}

func (b *Browser) UpdateLabyrinth(ctx context.Context, remoteID string, lab LabyrinthUpload) error {
	const op = "update labyrinth"

	if err := b.open(op, "/labyrinths/"+url.PathEscape(remoteID)+"/edit"); err != nil {
		return err
	}
	if b.has(".not-found") {
		return wrapErr(KindNotFound, op, fmt.Errorf("labyrinth %s not found", remoteID))
	}
	if err := b.fillLabyrinthForm(op, lab); err != nil {
		return err
	}
	return b.click(op, `#labyrinth-form button[type="submit"]`)
}

func (b *Browser) CreatePage(ctx context.Context, labyrinthID string, page PageUpload) (string, error) {
	const op = "create page"

	if err := b.open(op, "/labyrinths/"+url.PathEscape(labyrinthID)+"/pages/new"); err != nil {
		return "", err
	}
	if err := b.fillPageForm(op, page); err != nil {
		return "", err
	}
	if err := b.click(op, `#page-form button[type="submit"]`); err != nil {
		return "", err
	}

	// An accepted submission without a readable ID is reported as "no ID",
	// not as an error; the caller logs it and moves on.
	id, err := b.appData(op, "page.id")
	if err != nil {
		return "", err
	}
	return id, nil
}

func (b *Browser) UpdatePage(ctx context.Context, remoteID string, page PageUpload) error {
	const op = "update page"

	if err := b.open(op, "/pages/"+url.PathEscape(remoteID)+"/edit"); err != nil {
		return err
	}
	if b.has(".not-found") {
		return wrapErr(KindNotFound, op, fmt.Errorf("page %s not found", remoteID))
	}
	if err := b.fillPageForm(op, page); err != nil {
		return err
	}
	return b.click(op, `#page-form button[type="submit"]`)
}

func (b *Browser) DeletePage(ctx context.Context, labyrinthID, remoteID string) (bool, error) {
	const op = "delete page"

	if err := b.open(op, "/pages/"+url.PathEscape(remoteID)+"/edit"); err != nil {
		return false, err
	}
	if b.has(".not-found") {
		return false, nil
	}

	if err := b.click(op, "#delete-page"); err != nil {
		return false, err
	}
	if err := b.click(op, "#confirm-delete"); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Browser) SetPredecessorLink(ctx context.Context, targetID, sourceID string, answerPosition int) (bool, error) {
	const op = "set predecessor link"

	if err := b.open(op, "/pages/"+url.PathEscape(targetID)+"/edit"); err != nil {
		return false, err
	}
	if b.has(".not-found") {
		return false, nil
	}

	if err := b.fill(op, `#predecessors input[name="source_id"]`, sourceID); err != nil {
		return false, err
	}
	if err := b.fill(op, `#predecessors input[name="answer_position"]`, strconv.Itoa(answerPosition)); err != nil {
		return false, err
	}
	if err := b.click(op, "#add-predecessor"); err != nil {
		return false, err
	}

	return !b.has("#predecessors .flash-error"), nil
}

func (b *Browser) ClearPredecessorLinks(ctx context.Context, targetID string) error {
	const op = "clear predecessor links"

	if err := b.open(op, "/pages/"+url.PathEscape(targetID)+"/edit"); err != nil {
		return err
	}
	if b.has(".not-found") {
		// Clearing links on a page that is gone is a no-op.
		return nil
	}
	if !b.has("#predecessors .predecessor-row") {
		return nil
	}
	if err := b.click(op, "#clear-predecessors"); err != nil {
		return err
	}
	return b.click(op, "#confirm-clear")
}

func (b *Browser) UploadAsset(ctx context.Context, localPath string) (string, error) {
	const op = "upload asset"

	if err := b.open(op, "/assets/upload"); err != nil {
		return "", err
	}

	input, err := b.element(op, `#asset-form input[type="file"]`)
	if err != nil {
		return "", err
	}
	if err := input.SetFiles([]string{localPath}); err != nil {
		return "", classify(op, err)
	}
	if err := b.click(op, `#asset-form button[type="submit"]`); err != nil {
		return "", err
	}

	return b.appData(op, "asset.url")
}

// --- form helpers ---

func (b *Browser) fillLabyrinthForm(op string, lab LabyrinthUpload) error {
	if err := b.fill(op, `#labyrinth-form input[name="title"]`, lab.Title); err != nil {
		return err
	}
	if err := b.fill(op, `#labyrinth-form textarea[name="description"]`, lab.Description); err != nil {
		return err
	}

	// Tags are checkboxes named after the tag value. Untick everything,
	// then tick the configured set, so updates converge.
	if err := b.setCheckboxGroup(op, `#labyrinth-form input[name="tags"]`, lab.Tags); err != nil {
		return err
	}

	if lab.ImagePath != "" {
		input, err := b.element(op, `#labyrinth-form input[name="image"]`)
		if err != nil {
			return err
		}
		if err := input.SetFiles([]string{lab.ImagePath}); err != nil {
			return classify(op, err)
		}
	}

	keys := make([]string, 0, len(lab.Settings))
	for key := range lab.Settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := b.setSetting(op, key, lab.Settings[key]); err != nil {
			return err
		}
	}

	return nil
}

func (b *Browser) fillPageForm(op string, page PageUpload) error {
	if err := b.fill(op, `#page-form input[name="title"]`, page.Title); err != nil {
		return err
	}
	if err := b.fill(op, `#page-form textarea[name="content"]`, page.Content); err != nil {
		return err
	}
	if err := b.fill(op, `#page-form input[name="background_color"]`, page.BackgroundColor); err != nil {
		return err
	}
	if err := b.fill(op, `#page-form input[name="hint"]`, page.Hint); err != nil {
		return err
	}
	if page.HeaderDisplay != "" {
		if err := b.selectOption(op, `#page-form select[name="header_display"]`, page.HeaderDisplay); err != nil {
			return err
		}
	}
	if err := b.setCheckbox(op, `#page-form input[name="is_first"]`, page.IsFirst); err != nil {
		return err
	}
	if err := b.setCheckbox(op, `#page-form input[name="is_ending"]`, page.IsEnding); err != nil {
		return err
	}

	// Full replace: drop every existing answer row, then add the current
	// set in order.
	for b.has("#answers .answer-row") {
		if err := b.click(op, "#answers .answer-row .remove-answer"); err != nil {
			return err
		}
	}

	for _, answer := range page.Answers {
		if err := b.click(op, "#add-answer"); err != nil {
			return err
		}
		row := "#answers .answer-row:last-child "
		if err := b.fill(op, row+`input[name="answer_text"]`, answer.Text); err != nil {
			return err
		}
		if err := b.fill(op, row+`textarea[name="answer_explanation"]`, answer.Explanation); err != nil {
			return err
		}
		if err := b.setCheckbox(op, row+`input[name="answer_public"]`, answer.IsPublic); err != nil {
			return err
		}
	}

	return nil
}

// setSetting drives one presentation setting control. Booleans are
// checkboxes, enums are selects; the form names match the config keys.
func (b *Browser) setSetting(op, key, value string) error {
	sel := fmt.Sprintf(`#labyrinth-form [name="settings.%s"]`, key)

	switch value {
	case "true", "false":
		return b.setCheckbox(op, sel, value == "true")
	default:
		return b.selectOption(op, sel, value)
	}
}

// --- element helpers ---

// open navigates the tab to a site path and waits for the load event.
func (b *Browser) open(op, path string) error {
	page := b.page.Timeout(b.cfg.NavTimeout)

	if err := page.Navigate(b.cfg.BaseURL + path); err != nil {
		return classify(op, err)
	}
	if err := page.WaitLoad(); err != nil {
		return classify(op, err)
	}
	return nil
}

func (b *Browser) element(op, selector string) (*rod.Element, error) {
	el, err := b.page.Timeout(b.cfg.NavTimeout).Element(selector)
	if err != nil {
		return nil, classify(op, fmt.Errorf("element %s: %w", selector, err))
	}
	return el, nil
}

func (b *Browser) fill(op, selector, value string) error {
	el, err := b.element(op, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return classify(op, err)
	}
	if err := el.Input(value); err != nil {
		return classify(op, err)
	}
	return nil
}

func (b *Browser) click(op, selector string) error {
	el, err := b.element(op, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(op, err)
	}
	if err := b.page.Timeout(b.cfg.NavTimeout).WaitLoad(); err != nil {
		return classify(op, err)
	}
	return nil
}

func (b *Browser) setCheckbox(op, selector string, want bool) error {
	el, err := b.element(op, selector)
	if err != nil {
		return err
	}

	checked, err := el.Property("checked")
	if err != nil {
		return classify(op, err)
	}
	if checked.Bool() == want {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(op, err)
	}
	return nil
}

// setCheckboxGroup makes exactly the given values ticked within a group
// of same-named checkboxes.
func (b *Browser) setCheckboxGroup(op, selector string, values []string) error {
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}

	boxes, err := b.page.Timeout(b.cfg.NavTimeout).Elements(selector)
	if err != nil {
		return classify(op, err)
	}

	for _, box := range boxes {
		value, err := box.Property("value")
		if err != nil {
			return classify(op, err)
		}
		checked, err := box.Property("checked")
		if err != nil {
			return classify(op, err)
		}
		if checked.Bool() == want[value.String()] {
			continue
		}
		if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return classify(op, err)
		}
	}

	return nil
}

func (b *Browser) selectOption(op, selector, value string) error {
	el, err := b.element(op, selector)
	if err != nil {
		return err
	}
	if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
		return classify(op, err)
	}
	return nil
}

// has reports whether the current page contains the selector. Lookup
// failures count as absent; has is used for presence probes only.
func (b *Browser) has(selector string) bool {
	ok, _, err := b.page.Has(selector)
	return err == nil && ok
}

// appData reads the JSON blob the site embeds in every editor page and
// extracts a value by gjson path. A missing blob or path yields an empty
// string, not an error; callers decide whether that is fatal.
func (b *Browser) appData(op, path string) (string, error) {
	el, err := b.page.Timeout(b.cfg.NavTimeout).Element(`script#app-data[type="application/json"]`)
	if err != nil {
		return "", nil
	}
	text, err := el.Text()
	if err != nil {
		return "", classify(op, err)
	}
	return gjson.Get(text, path).String(), nil
}

// --- cookie cache ---

func (b *Browser) restoreCookies() {
	if b.sessions == nil {
		return
	}
	data := b.sessions.Cookies(b.host)
	if data == nil {
		return
	}

	var cookies []*proto.NetworkCookieParam
	if err := json.Unmarshal(data, &cookies); err != nil {
		b.logger.Debug("discarding unreadable cookie cache", slog.String("error", err.Error()))
		_ = b.sessions.Clear(b.host)
		return
	}

	if err := b.browser.SetCookies(cookies); err != nil {
		b.logger.Debug("restoring cookies failed", slog.String("error", err.Error()))
	}
}

func (b *Browser) persistCookies() {
	if b.sessions == nil {
		return
	}

	cookies, err := b.browser.GetCookies()
	if err != nil {
		b.logger.Debug("reading cookies failed", slog.String("error", err.Error()))
		return
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  c.Expires,
		})
	}

	data, err := json.Marshal(params)
	if err != nil {
		return
	}
	if err := b.sessions.SetCookies(b.host, data); err != nil {
		b.logger.Debug("caching cookies failed", slog.String("error", err.Error()))
	}
}
