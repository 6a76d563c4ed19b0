package paktype

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/meigma/pak/value"
)

// MetadataFiles lists the sidecar names read at the root of an asset
// directory. When several are present the last one wins.
var MetadataFiles = []string{"_metadata", ".metadata"}

// LoadSidecar parses every one of names present at the root of fsys as
// JSON and returns the last one with its name, or "" with a nil value
// when none exists.
func LoadSidecar(fsys fs.FS, names []string) (value.Value, string, error) {
	var (
		loaded value.Value
		from   string
	)
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", name, err)
		}
		v, err := value.ParseJSON(data)
		if err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", name, err)
		}
		loaded, from = v, name
	}
	return loaded, from, nil
}
