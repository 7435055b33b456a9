package pipeline

import (
	"errors"

	"github.com/MeKo-Tech/pano/internal/chain"
	"github.com/MeKo-Tech/pano/internal/sequence"
)

// ComposeChain composes an already estimated chain. A ref of AutoReference
// defers to the document and then to chain.DefaultReference. The returned
// result has no pair estimates; the canvas is set when every image size is
// known.
func ComposeChain(doc *sequence.Chain, ref int) (*Result, error) {
	if doc == nil {
		return nil, errors.New("nil chain")
	}
	n := len(doc.Pairs) + 1
	switch {
	case ref != AutoReference:
	case doc.Reference != nil:
		ref = *doc.Reference
	default:
		ref = chain.DefaultReference(n)
	}

	transforms, err := chain.Compose(doc.Pairs, ref)
	if err != nil {
		return nil, err
	}

	res := &Result{Images: n, Reference: ref, Transforms: make([]ImageTransform, n)}
	for i, h := range transforms {
		res.Transforms[i] = ImageTransform{Index: i, Homography: h}
		if i < len(doc.Images) {
			res.Transforms[i].Name = doc.Images[i].Name
		}
	}
	if len(doc.Images) == n && allSized(doc.Images) {
		canvas, err := ComputeCanvas(doc.Images, transforms)
		if err != nil {
			return nil, err
		}
		res.Canvas = canvas
	}
	return res, nil
}
