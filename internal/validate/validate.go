// Package validate checks labyrinth and page metadata before any remote
// mutation. Errors are collected in full (never fail-fast) and gate the
// whole run; warnings are reported but never block.
package validate

import (
	"fmt"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/nwerner/labsync/internal/content"
)

// MaxTitleLen is the remote application's title field limit.
const MaxTitleLen = 100

// MaxTags is the remote application's tag limit per labyrinth.
const MaxTags = 5

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Tags is the fixed vocabulary the remote application accepts.
var Tags = []string{
	"adventure",
	"education",
	"fantasy",
	"history",
	"mystery",
	"quiz",
	"science",
	"training",
}

var headerDisplayValues = []any{"title", "image", "none"}

// Issue is one finding, attributed to the page (empty for labyrinth-level
// findings) and field it concerns.
type Issue struct {
	Page    string
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Page == "" {
		return fmt.Sprintf("labyrinth: %s: %s", i.Field, i.Message)
	}
	return fmt.Sprintf("page %s: %s: %s", i.Page, i.Field, i.Message)
}

// Result collects every error and warning from one validation pass.
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// OK reports whether the run may proceed to remote mutation.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(page, field, message string) {
	r.Errors = append(r.Errors, Issue{Page: page, Field: field, Message: message})
}

func (r *Result) addWarning(page, field, message string) {
	r.Warnings = append(r.Warnings, Issue{Page: page, Field: field, Message: message})
}

// Run validates the labyrinth config and every eligible page (pages with
// both content and metadata facets; structurally incomplete pages are
// excluded by definition). Answer targets must resolve among the eligible
// pages, as must the labyrinth's first-page reference.
func Run(cfg *content.LabyrinthConfig, metas map[string]*content.PageMeta) Result {
	var result Result

	checkLabyrinth(&result, cfg, metas)

	names := make([]string, 0, len(metas))
	for name := range metas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checkPage(&result, name, metas[name], metas)
	}

	return result
}

func checkLabyrinth(result *Result, cfg *content.LabyrinthConfig, metas map[string]*content.PageMeta) {
	err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Title, validation.Required, validation.RuneLength(1, MaxTitleLen)),
		validation.Field(&cfg.Tags, validation.Length(0, MaxTags), validation.Each(validation.In(tagValues()...))),
		validation.Field(&cfg.FirstPage, validation.Required),
	)
	collectOzzo(result, "", err)

	if cfg.FirstPage != "" {
		if _, ok := metas[cfg.FirstPage]; !ok {
			result.addError("", "firstPage",
				fmt.Sprintf("references %q, which is not a complete page", cfg.FirstPage))
		}
	}
}

func checkPage(result *Result, name string, meta *content.PageMeta, metas map[string]*content.PageMeta) {
	err := validation.ValidateStruct(meta,
		validation.Field(&meta.Title, validation.Required, validation.RuneLength(1, MaxTitleLen)),
		validation.Field(&meta.BackgroundColor, validation.Match(colorPattern).Error("must be #RRGGBB")),
	)
	collectOzzo(result, name, err)

	if meta.HeaderDisplay != "" {
		if err := validation.Validate(meta.HeaderDisplay, validation.In(headerDisplayValues...)); err != nil {
			result.addWarning(name, "headerDisplay",
				fmt.Sprintf("%q is not one of title, image, none", meta.HeaderDisplay))
		}
	}

	if _, ok := meta.Ending(); !ok {
		result.addWarning(name, "isEnding", "is not a boolean and will be ignored")
	}

	for i, answer := range meta.Answers {
		field := fmt.Sprintf("answers[%d]", i)

		if answer.Text == "" {
			result.addError(name, field+".text", "must not be empty")
		}

		if answer.Next == "" {
			continue
		}
		if _, ok := metas[answer.Next]; !ok {
			result.addError(name, field+".next",
				fmt.Sprintf("references %q, which is not a complete page", answer.Next))
		}
	}
}

// collectOzzo flattens an ozzo validation.Errors map into per-field
// error issues.
func collectOzzo(result *Result, page string, err error) {
	if err == nil {
		return
	}

	fieldErrs, ok := err.(validation.Errors)
	if !ok {
		result.addError(page, "", err.Error())
		return
	}

	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		result.addError(page, field, fieldErrs[field].Error())
	}
}

func tagValues() []any {
	values := make([]any, len(Tags))
	for i, t := range Tags {
		values[i] = t
	}
	return values
}
