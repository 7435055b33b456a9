// Package geometry holds the value types shared by the estimation core:
// point correspondences between two images and 3x3 planar homographies.
//
// A Homography is a plain [9]float64 in row-major order, so it is copied by
// value and never aliased between callers. Matrix algebra that is more than a
// few multiply-adds (inversion) is delegated to gonum.
package geometry
