package sequence

import (
	"bytes"
	"image"
	"image/png"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "reference": 1,
  "images": [
    {"name": "a.jpg", "width": 640, "height": 480},
    {"name": "b.jpg", "width": 640, "height": 480},
    {"name": "c.jpg", "width": 640, "height": 480}
  ],
  "pairs": [
    {"correspondences": [[0, 0, 10, 0], [1, 2, 11, 2]]},
    {"correspondences": [[5, 5, 15, 5]]}
  ]
}`

const sampleYAML = `
reference: 0
images:
  - name: a.jpg
  - name: b.jpg
pairs:
  - correspondences:
      - [0, 0, 1, 1]
      - [2, 3, 4, 5]
`

func TestParse_JSON(t *testing.T) {
	seq, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, 3, seq.Len())
	require.NotNil(t, seq.Reference)
	assert.Equal(t, 1, *seq.Reference)
	assert.True(t, seq.Images[0].HasSize())

	set, err := seq.Correspondences(0)
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, geometry.NewCorrespondence(1, 2, 11, 2), set[1])
}

func TestParse_YAML(t *testing.T) {
	seq, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 2, seq.Len())
	assert.False(t, seq.Images[0].HasSize())

	sets, err := seq.Sets()
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, geometry.NewCorrespondence(2, 3, 4, 5), sets[0][1])
}

func TestParse_WithoutImages(t *testing.T) {
	seq, err := Parse([]byte(`{"pairs": [{"correspondences": []}, {"correspondences": []}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, seq.Len())
	assert.Nil(t, seq.Reference)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"pair count mismatch", `{"images": [{}, {}, {}], "pairs": [{"correspondences": []}]}`},
		{"short row", `{"pairs": [{"correspondences": [[1, 2, 3]]}]}`},
		{"reference out of range", `{"reference": 5, "pairs": [{"correspondences": []}]}`},
		{"negative reference", `{"reference": -1, "pairs": []}`},
		{"negative size", `{"images": [{"width": -1}], "pairs": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.ErrorIs(t, err, ErrInvalidSequence)
		})
	}

	_, err := Parse([]byte(`{not json`), FormatJSON)
	require.Error(t, err)
}

func TestSequence_CorrespondencesOutOfRange(t *testing.T) {
	seq := &Sequence{}
	_, err := seq.Correspondences(0)
	require.ErrorIs(t, err, ErrInvalidSequence)
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json": FormatJSON,
		"a.YAML": FormatYAML,
		"a.yml":  FormatYAML,
		"a.csv":  FormatCSV,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
	_, err := FormatFromPath("a.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.True(t, IsSequenceFile("x/seq.yaml"))
	assert.False(t, IsSequenceFile("x/pairs.csv"))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	synth := testutil.GenerateSequence(rng, 3, testutil.DefaultSceneConfig())
	images := []Image{
		{Name: "0.png", Width: 640, Height: 480},
		{Name: "1.png", Width: 640, Height: 480},
		{Name: "2.png", Width: 640, Height: 480},
	}
	seq := New(images, synth.Pairs)
	seq.SetReference(1)

	dir := testutil.CreateTempDir(t)
	for _, name := range []string{"seq.json", "nested/seq.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, seq))

		loaded, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, filepath.Dir(path), loaded.Dir)
		assert.Equal(t, 1, *loaded.Reference)
		assert.Equal(t, images, loaded.Images)

		sets, err := loaded.Sets()
		require.NoError(t, err)
		assert.Equal(t, synth.Pairs, sets)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	_, err := Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	_, err = Load(testutil.WriteFile(t, dir, "seq.csv", []byte("1,2,3,4\n")))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParsePairs(t *testing.T) {
	want := []geometry.Correspondence{
		geometry.NewCorrespondence(1, 2, 3, 4),
		geometry.NewCorrespondence(5.5, 6, 7, 8),
	}
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"json list", FormatJSON, `[[1,2,3,4],[5.5,6,7,8]]`},
		{"json wrapped", FormatJSON, `{"correspondences": [[1,2,3,4],[5.5,6,7,8]]}`},
		{"yaml list", FormatYAML, "- [1, 2, 3, 4]\n- [5.5, 6, 7, 8]\n"},
		{"yaml wrapped", FormatYAML, "correspondences:\n  - [1, 2, 3, 4]\n  - [5.5, 6, 7, 8]\n"},
		{"csv", FormatCSV, "1,2,3,4\n5.5,6,7,8\n"},
		{"csv header", FormatCSV, "x,y,u,v\n1, 2, 3, 4\n# comment\n5.5,6,7,8\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePairs([]byte(tt.data), tt.format)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParsePairs_Errors(t *testing.T) {
	_, err := ParsePairs([]byte("1,2,3,4\n1,2,x,4\n"), FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParsePairs([]byte("1,2,3\n"), FormatCSV)
	require.Error(t, err)

	_, err = ParsePairs([]byte(`[[1,2,3]]`), FormatJSON)
	require.Error(t, err)

	_, err = ParsePairs([]byte(`"text"`), FormatJSON)
	require.Error(t, err)
}

func TestLoadPairs(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := testutil.WriteFile(t, dir, "pairs.csv", []byte("0,0,1,1\n"))
	set, err := LoadPairs(path)
	require.NoError(t, err)
	assert.Len(t, set, 1)

	_, err = LoadPairs(filepath.Join(dir, "pairs.txt"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseChain(t *testing.T) {
	c, err := ParseChain([]byte(`{"reference": 0, "pairs": [[[1,0,5],[0,1,0],[0,0,1]], [2,0,0,0,2,0,0,0,1]]}`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, c.Pairs, 2)
	assert.Equal(t, geometry.Translation(5, 0), c.Pairs[0])
	assert.Equal(t, geometry.Scaling(2, 2, 0, 0), c.Pairs[1])
	assert.Equal(t, 0, *c.Reference)

	c, err = ParseChain([]byte("pairs:\n  - [[1, 0, 0], [0, 1, 3], [0, 0, 1]]\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, geometry.Translation(0, 3), c.Pairs[0])
	assert.Nil(t, c.Reference)

	_, err = ParseChain([]byte(`{"images": [{}, {}], "pairs": []}`), FormatJSON)
	require.ErrorIs(t, err, ErrInvalidSequence)
}

func writePNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	testutil.WriteFile(t, dir, name, buf.Bytes())
}

func TestProbeDimensions(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	writePNG(t, dir, "img/left.png", 32, 24)

	doc := `{"images": [{"path": "img/left.png"}, {"name": "b", "width": 10, "height": 10}], "pairs": [{"correspondences": []}]}`
	path := testutil.WriteFile(t, dir, "seq.json", []byte(doc))

	seq, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Image{Name: "left.png", Path: "img/left.png", Width: 32, Height: 24}, seq.Images[0])
	assert.Equal(t, 10, seq.Images[1].Width)
}

func TestProbeDimensions_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteFile(t, dir, "broken.png", []byte("not a png"))

	seq := &Sequence{Dir: dir, Images: []Image{{Path: "broken.png"}}}
	require.Error(t, seq.ProbeDimensions())

	seq = &Sequence{Dir: dir, Images: []Image{{Path: "notes.txt"}}}
	err := seq.ProbeDimensions()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image format")
}
