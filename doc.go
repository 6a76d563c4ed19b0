// Package pak reads game asset sources through one interface, whether the
// assets live in a packed SBAsset6 archive or in a plain directory.
//
// A packed archive is a single file: an 8-byte "SBAsset6" magic, the
// big-endian offset of the index, the concatenated asset contents, and an
// index block holding the metadata object and one (path, offset, size)
// record per asset. A directory source is any folder whose files are the
// assets, with optional JSON metadata in a "_metadata" or ".metadata"
// sidecar at its root. Assets are always addressed by absolute,
// slash-separated paths such as "/items/hat.png".
//
// For writing archives and for lower-level access, use the [core]
// subpackage; the tagged metadata values live in [value].
//
// # Quick Start
//
// Open a source and read an asset:
//
//	src, err := pak.Open(ctx, "assets/base.pak")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//	data, err := src.Read("/items/hat.png")
//
// Remote archives are read with HTTP range requests:
//
//	mem, err := memory.New(memory.WithMaxBytes(32 << 20))
//	if err != nil {
//	    return err
//	}
//	src, err := pak.Open(ctx, "https://example.com/base.pak", pak.WithCache(mem))
//
// # Standard library integration
//
// [NewFS] exposes any Source as an [io/fs.FS] with synthetic directories,
// and [Extract] writes a Source out to disk.
package pak
