package sequence

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists the formats whose dimensions can be probed.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageSize reads the dimensions of an image file without decoding pixels.
func ImageSize(path string) (width, height int, err error) {
	if !IsSupportedImage(path) {
		return 0, 0, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	f, err := os.Open(path) //nolint:gosec // G304: image path from sequence file
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// ProbeDimensions fills in missing image sizes from the image files.
// Images without a path are left as they are.
func (s *Sequence) ProbeDimensions() error {
	for i := range s.Images {
		img := &s.Images[i]
		if img.HasSize() || img.Path == "" {
			continue
		}
		path := img.Path
		if !filepath.IsAbs(path) && s.Dir != "" {
			path = filepath.Join(s.Dir, path)
		}
		w, h, err := ImageSize(path)
		if err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		img.Width, img.Height = w, h
		if img.Name == "" {
			img.Name = filepath.Base(img.Path)
		}
	}
	return nil
}
