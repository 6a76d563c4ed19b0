package pak

import (
	"errors"

	pakcore "github.com/meigma/pak/core"
	pakhttp "github.com/meigma/pak/core/http"
	"github.com/meigma/pak/value"
)

// ErrUnsafePath is returned by Extract for asset paths that cannot be
// written below the destination, such as paths with ".." elements.
var ErrUnsafePath = errors.New("pak: unsafe asset path")

// Errors re-exported from core.
var (
	// ErrInvalidHeader is returned when a packed file does not start with the magic bytes.
	ErrInvalidHeader = pakcore.ErrInvalidHeader

	// ErrInvalidIndexHeader is returned when the index block marker is missing.
	ErrInvalidIndexHeader = pakcore.ErrInvalidIndexHeader

	// ErrNotAbsolute is returned for asset paths that do not start with "/".
	ErrNotAbsolute = pakcore.ErrNotAbsolute

	// ErrKeyNotFound is returned by Meta for absent metadata keys.
	ErrKeyNotFound = pakcore.ErrKeyNotFound

	// ErrMetadataNotObject is returned when a sidecar holds something other than an object.
	ErrMetadataNotObject = pakcore.ErrMetadataNotObject

	// ErrInvalidName is returned for file names that are not valid UTF-8.
	ErrInvalidName = pakcore.ErrInvalidName

	// ErrTooLarge is returned when an asset exceeds the configured size limit.
	ErrTooLarge = pakcore.ErrTooLarge

	// ErrSizeOverflow is returned when sizes or offsets exceed supported limits.
	ErrSizeOverflow = pakcore.ErrSizeOverflow
)

// ErrRangeUnsupported is returned when a remote server ignores range requests.
var ErrRangeUnsupported = pakhttp.ErrRangeUnsupported

// ErrInvalidJSON is returned when a metadata sidecar is not valid JSON.
var ErrInvalidJSON = value.ErrInvalidJSON
