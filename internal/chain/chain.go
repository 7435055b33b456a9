// Package chain composes pairwise homographies of an image sequence into
// transforms that map every image into a common reference frame.
package chain

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/pano/internal/geometry"
)

// ErrInvalidReference is returned when the reference index is outside the
// sequence.
var ErrInvalidReference = errors.New("invalid reference index")

// DefaultReference picks the reference image for an n-image sequence: the
// image just left of center, n/2-1, clamped to the valid range.
func DefaultReference(n int) int {
	ref := n/2 - 1
	if ref > n-2 {
		ref = n - 2
	}
	return max(ref, 0)
}

// ValidateReference checks that mid is a usable reference for a sequence of
// the given number of images: [0, images-2], or 0 for a single image.
func ValidateReference(images, mid int) error {
	if images < 1 || mid < 0 || mid > max(images-2, 0) {
		return fmt.Errorf("%w: %d for %d images", ErrInvalidReference, mid, images)
	}
	return nil
}

// Compose maps each of the len(pairs)+1 images into the frame of image mid.
// pairs[k] maps points of image k into image k+1. mid must lie in
// [0, len(pairs)-1]; a single-image sequence accepts only mid 0.
//
// For i < mid the result is pairs[mid]·pairs[mid-1]·…·pairs[i], for i > mid
// it is inv(pairs[mid])·inv(pairs[mid+1])·…·inv(pairs[i-1]), and image mid
// gets the identity. The products are not renormalized.
func Compose(pairs []geometry.Homography, mid int) ([]geometry.Homography, error) {
	n := len(pairs) + 1
	if err := ValidateReference(n, mid); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return []geometry.Homography{geometry.Identity()}, nil
	}

	inverses := make([]geometry.Homography, len(pairs))
	for k := mid; k < len(pairs); k++ {
		inv, err := pairs[k].Inverse()
		if err != nil {
			return nil, fmt.Errorf("invert pair %d: %w", k, err)
		}
		inverses[k] = inv
	}

	out := make([]geometry.Homography, n)
	out[mid] = geometry.Identity()

	fwd := pairs[mid]
	for i := mid - 1; i >= 0; i-- {
		fwd = fwd.Mul(pairs[i])
		out[i] = fwd
	}

	back := geometry.Identity()
	for i := mid + 1; i < n; i++ {
		back = back.Mul(inverses[i-1])
		out[i] = back
	}
	return out, nil
}
