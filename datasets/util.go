package datasets

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeImageFile opens and decodes an image in any registered format.
func decodeImageFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return img, nil
}

// Auto-discovery helpers

// ListModes returns the split names that have a manifest under
// <root>/<listDir>, sorted.
func ListModes(root, listDir string) ([]string, error) {
	pattern := filepath.Join(root, listDir, "*.txt")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.Wrapf(ErrManifestMissing, "no manifests matching %s", pattern)
	}
	modes := make([]string, 0, len(matches))
	for _, m := range matches {
		modes = append(modes, strings.TrimSuffix(filepath.Base(m), ".txt"))
	}
	sort.Strings(modes)
	return modes, nil
}
