// Package platform opens asset files below an os.Root without following
// symbolic links.
package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when an asset turned into a symbolic link after
// it was scanned.
var ErrSymlink = errors.New("asset is a symbolic link")

// OpenNoFollow opens name below root for reading. It fails with
// ErrSymlink when name is a symbolic link, including one that resolves
// inside root, or when name is replaced between the check and the open.
func OpenNoFollow(root *os.Root, name string) (*os.File, error) {
	linfo, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if linfo.Mode()&fs.ModeSymlink != 0 {
		return nil, &fs.PathError{Op: "open", Path: name, Err: ErrSymlink}
	}
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !os.SameFile(linfo, info) {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: ErrSymlink}
	}
	return f, nil
}
