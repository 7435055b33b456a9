package server

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/MeKo-Tech/pano/internal/testutil"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a server with a fixed seed and small worker pool.
func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	pcfg := pipeline.DefaultConfig()
	pcfg.Seed = 7
	pcfg.Parallel.MaxWorkers = 2
	cfg := Config{CORSOrigin: "*", MaxUploadMB: 10, TimeoutSec: 30, PipelineConfig: pcfg}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// rows converts a correspondence set to [x, y, u, v] rows.
func rows(set []geometry.Correspondence) [][]float64 {
	out := make([][]float64, len(set))
	for i, c := range set {
		r := c.Row()
		out[i] = r[:]
	}
	return out
}

// syntheticPair returns an 80/20 correspondence set and its ground truth.
func syntheticPair(seed int64) ([][]float64, geometry.Homography) {
	rng := rand.New(rand.NewSource(seed))
	h := testutil.RandomHomography(rng)
	set, _ := testutil.GenerateCorrespondences(rng, h, testutil.DefaultSceneConfig())
	return rows(set), h
}

// syntheticSequence returns a sequence document of n sized images.
func syntheticSequence(seed int64, n int) *sequence.Sequence {
	rng := rand.New(rand.NewSource(seed))
	cfg := testutil.DefaultSceneConfig()
	syn := testutil.GenerateSequence(rng, n, cfg)
	images := make([]sequence.Image, n)
	for i := range images {
		images[i] = sequence.Image{Width: int(cfg.Width), Height: int(cfg.Height)}
	}
	return sequence.New(images, syn.Pairs)
}

// do sends body as JSON to the handler and returns the recorder.
func do(t *testing.T, h http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}
