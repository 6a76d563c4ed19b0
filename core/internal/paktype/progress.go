package paktype

// ProgressEvent reports progress while building or unpacking an archive.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the asset currently being processed, if any.
	Path string

	// BytesDone is the number of asset bytes written so far.
	BytesDone uint64

	// FilesDone is the number of assets completed.
	FilesDone int

	// FilesTotal is the total number of assets, or zero when unknown.
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageScanning indicates the source directory is being walked.
	StageScanning ProgressStage = iota

	// StageWriting indicates asset data is being written.
	StageWriting

	// StageIndexing indicates the index block is being written.
	StageIndexing

	// StageExtracting indicates assets are being written out to disk.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StageWriting:
		return "writing"
	case StageIndexing:
		return "indexing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress events. Implementations must be safe
// for concurrent use when passed to operations that run in parallel.
type ProgressFunc func(ProgressEvent)
