package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/MeKo-Tech/pano/internal/testutil"
	"github.com/cucumber/godog"
)

const dataSeed = 20240601

func (testCtx *TestContext) syntheticSequence(images int) *sequence.Sequence {
	rng := rand.New(rand.NewSource(dataSeed + int64(images))) //nolint:gosec // G404: test data
	syn := testutil.GenerateSequence(rng, images, testutil.DefaultSceneConfig())
	meta := make([]sequence.Image, images)
	for i := range meta {
		meta[i] = sequence.Image{Name: fmt.Sprintf("frame%02d.jpg", i), Width: 640, Height: 480}
	}
	return sequence.New(meta, syn.Pairs)
}

// aSyntheticSequenceOfImages writes {sequence} as JSON.
func (testCtx *TestContext) aSyntheticSequenceOfImages(images int) error {
	path := testCtx.TempPath("sequence.json")
	if err := sequence.Save(path, testCtx.syntheticSequence(images)); err != nil {
		return err
	}
	testCtx.Files["sequence"] = path
	return nil
}

// aSyntheticSequenceFileNamed writes a sequence under a chosen name, which
// selects the format by extension.
func (testCtx *TestContext) aSyntheticSequenceFileNamed(images int, name string) error {
	path := testCtx.TempPath(name)
	if err := sequence.Save(path, testCtx.syntheticSequence(images)); err != nil {
		return err
	}
	testCtx.Files[strings.TrimSuffix(name, filepath.Ext(name))] = path
	return nil
}

// aCorrespondenceFile writes {pairs} as CSV with the given inlier and
// outlier counts.
func (testCtx *TestContext) aCorrespondenceFile(inliers, outliers int) error {
	rng := rand.New(rand.NewSource(dataSeed)) //nolint:gosec // G404: test data
	cfg := testutil.DefaultSceneConfig()
	cfg.Inliers, cfg.Outliers = inliers, outliers
	set, _ := testutil.GenerateCorrespondences(rng, testutil.PanningHomography(rng, cfg.Width), cfg)

	var sb strings.Builder
	sb.WriteString("x,y,u,v\n")
	for _, c := range set {
		fmt.Fprintf(&sb, "%g,%g,%g,%g\n", c.Left.X, c.Left.Y, c.Right.X, c.Right.Y)
	}
	path := testCtx.TempPath("pairs.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return err
	}
	testCtx.Files["pairs"] = path
	return nil
}

// aChainOfHorizontalShifts writes {chain} where pair k shifts by -dx[k].
func (testCtx *TestContext) aChainOfHorizontalShifts(list string) error {
	var doc sequence.Chain
	for _, field := range strings.Split(list, ",") {
		var dx float64
		if _, err := fmt.Sscanf(strings.TrimSpace(field), "%g", &dx); err != nil {
			return fmt.Errorf("invalid shift %q: %w", field, err)
		}
		doc.Pairs = append(doc.Pairs, geometry.Translation(dx, 0))
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	path := testCtx.TempPath("chain.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	testCtx.Files["chain"] = path
	return nil
}

// aDirectoryOfSequenceFiles writes {sequences}/seq_NN.json.
func (testCtx *TestContext) aDirectoryOfSequenceFiles(count int) error {
	dir := testCtx.TempPath("sequences")
	for i := range count {
		path := filepath.Join(dir, fmt.Sprintf("seq_%02d.json", i))
		if err := sequence.Save(path, testCtx.syntheticSequence(3+i)); err != nil {
			return err
		}
	}
	testCtx.Files["sequences"] = dir
	return nil
}

// aBrokenSequenceFileIn adds an unparsable sequence to {sequences}.
func (testCtx *TestContext) aBrokenSequenceFileIn() error {
	dir, ok := testCtx.Files["sequences"]
	if !ok {
		return errors.New("no sequence directory generated yet")
	}
	return os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"pairs": [{"correspondences": [[1, 2]]}]}`), 0o600)
}

// RegisterDataSteps registers the synthetic input generators.
func (testCtx *TestContext) RegisterDataSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a synthetic sequence of (\d+) images$`, testCtx.aSyntheticSequenceOfImages)
	sc.Step(`^a synthetic sequence of (\d+) images saved as "([^"]*)"$`, testCtx.aSyntheticSequenceFileNamed)
	sc.Step(`^a correspondence file with (\d+) inliers and (\d+) outliers$`, testCtx.aCorrespondenceFile)
	sc.Step(`^a chain of horizontal shifts "([^"]*)"$`, testCtx.aChainOfHorizontalShifts)
	sc.Step(`^a directory of (\d+) sequence files$`, testCtx.aDirectoryOfSequenceFiles)
	sc.Step(`^the directory also holds a broken sequence file$`, testCtx.aBrokenSequenceFileIn)
}
