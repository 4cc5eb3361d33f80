package datasets

import "github.com/pkg/errors"

// Error kinds returned by the dataset. They are wrapped with context, test
// them with errors.Is.
var (
	// ErrManifestMissing is returned at construction when <root>/list/<mode>.txt is absent.
	ErrManifestMissing = errors.New("manifest file not found")

	// ErrIndexOutOfRange is returned for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrSampleMissing is returned when one of the three files of a sample is
	// absent or cannot be decoded.
	ErrSampleMissing = errors.New("sample file missing or unreadable")

	// ErrShape is returned when an array is smaller than the crop window.
	ErrShape = errors.New("array smaller than crop window")
)
