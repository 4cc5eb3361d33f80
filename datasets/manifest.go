package datasets

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ManifestPath returns <root>/<listDir>/<mode>.txt.
func ManifestPath(root, listDir, mode string) string {
	return filepath.Join(root, listDir, mode+".txt")
}

// ReadManifest reads the identifiers of a split, one per non-empty line, in
// file order. Trailing whitespace (including \r) is stripped.
func ReadManifest(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrManifestMissing, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to open manifest %s", path)
	}
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		id := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}
	return ids, nil
}
