// Package homography estimates a planar homography from exactly four point
// correspondences with the direct linear transform, and scores candidate
// homographies against a full correspondence set by reprojection error.
package homography
