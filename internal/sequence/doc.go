// Package sequence reads and writes the files that describe image
// sequences, correspondence sets and homography chains.
//
// A sequence file lists N images and the N-1 correspondence sets between
// adjacent images. Files are JSON or YAML, chosen by extension. Pair files
// may additionally be CSV with four columns x, y, u, v.
package sequence
