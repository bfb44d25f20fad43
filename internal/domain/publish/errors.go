package publish

import "fmt"

// Stable codes surfaced with archive rejections.
const (
	CodeInvalidArchive    = "INVALID_ARCHIVE"
	CodeArchiveTooLarge   = "ARCHIVE_TOO_LARGE"
	CodeExtractedTooLarge = "EXTRACTED_TOO_LARGE"
	CodeTooManyFiles      = "TOO_MANY_FILES"
	CodeSymlinkNotAllowed = "SYMLINK_NOT_ALLOWED"
	CodeInvalidEntryPath  = "INVALID_ENTRY_PATH"
)

// CapacityError rejects an archive before any store write, naming the limit
// that was exceeded.
type CapacityError struct {
	Code    string
	Limit   int64
	Message string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %s (limit %d)", e.Code, e.Message, e.Limit)
}

// ArchiveError rejects a structurally invalid archive or entry.
type ArchiveError struct {
	Code    string
	Message string
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
