package fingerprint

import (
	"encoding/json"
	"testing"

	"github.com/nwerner/labsync/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(title string) *content.PageMeta {
	return &content.PageMeta{
		Title: title,
		Answers: []content.Answer{
			{Text: "north", Next: "cave"},
			{Text: "south", Next: "swamp"},
		},
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	a := Checksum([]byte("payload"))
	b := Checksum([]byte("payload"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Checksum([]byte("other")))
}

func TestPage_Deterministic(t *testing.T) {
	sums := []string{"aaa", "bbb"}

	h1, err := Page("<p>hello</p>", meta("Start"), sums)
	require.NoError(t, err)
	h2, err := Page("<p>hello</p>", meta("Start"), sums)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestPage_SensitiveToContent(t *testing.T) {
	h1, err := Page("<p>hello</p>", meta("Start"), nil)
	require.NoError(t, err)
	h2, err := Page("<p>bye</p>", meta("Start"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestPage_SensitiveToMetadata(t *testing.T) {
	h1, err := Page("<p>hello</p>", meta("Start"), nil)
	require.NoError(t, err)
	h2, err := Page("<p>hello</p>", meta("Finish"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestPage_SensitiveToAssets(t *testing.T) {
	h1, err := Page("<p>hello</p>", meta("Start"), []string{"aaa"})
	require.NoError(t, err)
	h2, err := Page("<p>hello</p>", meta("Start"), []string{"bbb"})
	require.NoError(t, err)
	h3, err := Page("<p>hello</p>", meta("Start"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestPage_AssetOrderIrrelevant(t *testing.T) {
	h1, err := Page("<p>x</p>", meta("Start"), []string{"aaa", "bbb", "ccc"})
	require.NoError(t, err)
	h2, err := Page("<p>x</p>", meta("Start"), []string{"ccc", "aaa", "bbb"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

// Two metadata files with identical values but different key order must
// fingerprint identically: the digest covers the decoded struct, not the
// raw file bytes.
func TestPage_MetadataKeyOrderIrrelevant(t *testing.T) {
	m1 := &content.PageMeta{}
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Start","hint":"look up"}`), m1))

	m2 := &content.PageMeta{}
	require.NoError(t, json.Unmarshal([]byte(`{"hint":"look up","title":"Start"}`), m2))

	h1, err := Page("<p>x</p>", m1, nil)
	require.NoError(t, err)
	h2, err := Page("<p>x</p>", m2, nil)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

// Section boundaries are length-prefixed, so moving bytes between
// adjacent sections changes the digest.
func TestPage_SectionBoundaries(t *testing.T) {
	h1, err := Page("ab", &content.PageMeta{Title: "c"}, nil)
	require.NoError(t, err)
	h2, err := Page("a", &content.PageMeta{Title: "bc"}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestLabyrinth_Deterministic(t *testing.T) {
	cfg := &content.LabyrinthConfig{
		Title:     "The Maze",
		FirstPage: "start",
		Settings:  content.DefaultSettings(),
	}

	h1, err := Labyrinth(cfg, "imgsum")
	require.NoError(t, err)
	h2, err := Labyrinth(cfg, "imgsum")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestLabyrinth_SensitiveToSettings(t *testing.T) {
	cfg := &content.LabyrinthConfig{Title: "The Maze", FirstPage: "start", Settings: content.DefaultSettings()}
	h1, err := Labyrinth(cfg, "")
	require.NoError(t, err)

	changed := *cfg
	changed.Settings.ShuffleAnswers = true
	h2, err := Labyrinth(&changed, "")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestLabyrinth_SensitiveToImage(t *testing.T) {
	cfg := &content.LabyrinthConfig{Title: "The Maze", FirstPage: "start"}

	h1, err := Labyrinth(cfg, "sum1")
	require.NoError(t, err)
	h2, err := Labyrinth(cfg, "sum2")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
