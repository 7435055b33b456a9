package sequence

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/pano/internal/geometry"
)

// ErrInvalidSequence is returned for structurally invalid sequence documents.
var ErrInvalidSequence = errors.New("invalid sequence")

// Image describes one image of a sequence. Width and Height are optional;
// when missing and Path is set they are probed from the file.
type Image struct {
	Name   string `json:"name,omitempty"   yaml:"name,omitempty"`
	Path   string `json:"path,omitempty"   yaml:"path,omitempty"`
	Width  int    `json:"width,omitempty"  yaml:"width,omitempty"`
	Height int    `json:"height,omitempty" yaml:"height,omitempty"`
}

// HasSize reports whether both dimensions are known.
func (img Image) HasSize() bool {
	return img.Width > 0 && img.Height > 0
}

// Pair holds the correspondences between image i and image i+1 as rows of
// [x, y, u, v].
type Pair struct {
	Correspondences [][]float64 `json:"correspondences" yaml:"correspondences"`
}

// Sequence is an ordered image sequence with one correspondence set per
// adjacent pair.
type Sequence struct {
	Reference *int    `json:"reference,omitempty" yaml:"reference,omitempty"`
	Images    []Image `json:"images,omitempty"    yaml:"images,omitempty"`
	Pairs     []Pair  `json:"pairs"               yaml:"pairs"`

	// Dir is the directory relative image paths are resolved against.
	Dir string `json:"-" yaml:"-"`
}

// New builds a sequence from correspondence sets. images may be nil.
func New(images []Image, sets [][]geometry.Correspondence) *Sequence {
	seq := &Sequence{Images: images, Pairs: make([]Pair, len(sets))}
	for i, set := range sets {
		rows := make([][]float64, len(set))
		for j, c := range set {
			r := c.Row()
			rows[j] = r[:]
		}
		seq.Pairs[i] = Pair{Correspondences: rows}
	}
	return seq
}

// Len returns the number of images. Without an image list it is inferred
// from the pair count.
func (s *Sequence) Len() int {
	if len(s.Images) > 0 {
		return len(s.Images)
	}
	return len(s.Pairs) + 1
}

// SetReference sets an explicit reference index.
func (s *Sequence) SetReference(ref int) {
	s.Reference = &ref
}

// Validate checks the document structure.
func (s *Sequence) Validate() error {
	if len(s.Images) > 0 && len(s.Pairs) != len(s.Images)-1 {
		return fmt.Errorf("%w: %d images need %d pairs, got %d",
			ErrInvalidSequence, len(s.Images), len(s.Images)-1, len(s.Pairs))
	}
	if s.Reference != nil && (*s.Reference < 0 || *s.Reference > max(s.Len()-2, 0)) {
		return fmt.Errorf("%w: reference %d out of range for %d images",
			ErrInvalidSequence, *s.Reference, s.Len())
	}
	for i, p := range s.Pairs {
		if err := validateRows(p.Correspondences); err != nil {
			return fmt.Errorf("%w: pair %d: %v", ErrInvalidSequence, i, err)
		}
	}
	for i, img := range s.Images {
		if img.Width < 0 || img.Height < 0 {
			return fmt.Errorf("%w: image %d has negative size", ErrInvalidSequence, i)
		}
	}
	return nil
}

// Correspondences returns the correspondence set of pair i.
func (s *Sequence) Correspondences(i int) ([]geometry.Correspondence, error) {
	if i < 0 || i >= len(s.Pairs) {
		return nil, fmt.Errorf("%w: pair %d out of range", ErrInvalidSequence, i)
	}
	return rowsToCorrespondences(s.Pairs[i].Correspondences)
}

// Sets returns every pair's correspondence set.
func (s *Sequence) Sets() ([][]geometry.Correspondence, error) {
	out := make([][]geometry.Correspondence, len(s.Pairs))
	for i := range s.Pairs {
		set, err := s.Correspondences(i)
		if err != nil {
			return nil, err
		}
		out[i] = set
	}
	return out, nil
}

func validateRows(rows [][]float64) error {
	for j, r := range rows {
		if len(r) != 4 {
			return fmt.Errorf("correspondence %d has %d values, want 4", j, len(r))
		}
		for _, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("correspondence %d is not finite", j)
			}
		}
	}
	return nil
}

func rowsToCorrespondences(rows [][]float64) ([]geometry.Correspondence, error) {
	if err := validateRows(rows); err != nil {
		return nil, err
	}
	out := make([]geometry.Correspondence, len(rows))
	for i, r := range rows {
		out[i] = geometry.NewCorrespondence(r[0], r[1], r[2], r[3])
	}
	return out, nil
}
