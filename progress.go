package pak

import pakcore "github.com/meigma/pak/core"

// Re-export progress types from core package.
type (
	// ProgressEvent represents a progress update during packing or extraction.
	ProgressEvent = pakcore.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = pakcore.ProgressStage

	// ProgressFunc receives progress updates during operations.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = pakcore.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageScanning indicates the source directory is being walked.
	StageScanning = pakcore.StageScanning

	// StageWriting indicates asset data is being written into an archive.
	StageWriting = pakcore.StageWriting

	// StageIndexing indicates the archive index is being written.
	StageIndexing = pakcore.StageIndexing

	// StageExtracting indicates assets are being written out to disk.
	StageExtracting = pakcore.StageExtracting
)
