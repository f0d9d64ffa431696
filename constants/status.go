package constants

// Stage is the canonical name of a pipeline stage as seen by stream consumers.
type Stage string

// Stable values (clients switch on these exact strings).
const (
	StageUploading   Stage = "uploading"
	StageExtracting  Stage = "extracting"
	StageIdentifying Stage = "identifying"
	StageChunking    Stage = "chunking"
	StageParsingBase Stage = "parsing-base"
	StageParsingPubs Stage = "parsing-pubs"
	StageFinalizing  Stage = "finalizing"
	StageComplete    Stage = "complete"  // terminal: carries the structured record
	StageError       Stage = "error"     // terminal: message carries the failure reason
	StageWarning     Stage = "warning"   // non-fatal diagnostics (retries, dropped records)
)

// IsTerminal reports whether no further events may follow s.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageError
}

// Error codes attached to terminal and warning events under details["code"].
const (
	CodeExtraction   = "extraction"
	CodeLLMTransient = "llm_transient"
	CodeLLMFatal     = "llm_fatal"
	CodeValidation   = "validation"
	CodeParseError   = "parse_error"
	CodeDuplicate    = "duplicate"
	CodeStorage      = "storage"
	CodeCanceled     = "canceled"
	CodeInternal     = "internal"
)
