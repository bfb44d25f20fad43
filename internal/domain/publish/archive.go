package publish

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/perchhq/perch/internal/content"
)

// Limits bound what a single publish may upload. The extracted ceiling is
// checked independently of the compressed one to bound zip-bomb
// amplification.
type Limits struct {
	MaxArchiveBytes   int64
	MaxExtractedBytes int64
	MaxFiles          int
}

// DefaultLimits matches the server defaults.
var DefaultLimits = Limits{
	MaxArchiveBytes:   50 << 20,  // 50 MiB compressed
	MaxExtractedBytes: 200 << 20, // 200 MiB extracted
	MaxFiles:          10000,
}

// ArchiveFile is one validated member, path already normalized.
type ArchiveFile struct {
	Path string
	Data []byte
}

// Archive is a fully validated upload ready for the coordinator.
type Archive struct {
	Files      []ArchiveFile
	TotalBytes int64
}

// ParseArchive validates a zip upload: compressed size ceiling first, then
// declared extracted size, entry count, symlink rejection by Unix mode
// bits, and per-entry path validation with the content-serving rules.
// The extracted ceiling is re-enforced while reading, so a lying header
// cannot smuggle extra bytes.
func ParseArchive(data []byte, limits Limits) (*Archive, error) {
	if int64(len(data)) > limits.MaxArchiveBytes {
		return nil, &CapacityError{
			Code:    CodeArchiveTooLarge,
			Limit:   limits.MaxArchiveBytes,
			Message: fmt.Sprintf("archive is %d bytes", len(data)),
		}
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ArchiveError{Code: CodeInvalidArchive, Message: "not a valid zip archive"}
	}

	var declared int64
	fileCount := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		fileCount++
		declared += int64(f.UncompressedSize64)
	}
	if fileCount > limits.MaxFiles {
		return nil, &CapacityError{
			Code:    CodeTooManyFiles,
			Limit:   int64(limits.MaxFiles),
			Message: fmt.Sprintf("archive has %d files", fileCount),
		}
	}
	if declared > limits.MaxExtractedBytes {
		return nil, &CapacityError{
			Code:    CodeExtractedTooLarge,
			Limit:   limits.MaxExtractedBytes,
			Message: fmt.Sprintf("archive extracts to %d bytes", declared),
		}
	}

	archive := &Archive{Files: make([]ArchiveFile, 0, fileCount)}
	seen := make(map[string]bool, fileCount)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.Mode()&os.ModeSymlink != 0 {
			return nil, &ArchiveError{
				Code:    CodeSymlinkNotAllowed,
				Message: fmt.Sprintf("entry %q is a symbolic link", f.Name),
			}
		}
		cleaned, err := content.CleanPath(f.Name)
		if err != nil || cleaned == "" {
			return nil, &ArchiveError{
				Code:    CodeInvalidEntryPath,
				Message: fmt.Sprintf("entry path %q is not allowed", f.Name),
			}
		}
		if seen[cleaned] {
			return nil, &ArchiveError{
				Code:    CodeInvalidEntryPath,
				Message: fmt.Sprintf("duplicate entry path %q", cleaned),
			}
		}
		seen[cleaned] = true

		rc, err := f.Open()
		if err != nil {
			return nil, &ArchiveError{Code: CodeInvalidArchive, Message: fmt.Sprintf("cannot open entry %q", f.Name)}
		}
		remaining := limits.MaxExtractedBytes - archive.TotalBytes
		body, err := io.ReadAll(io.LimitReader(rc, remaining+1))
		rc.Close()
		if err != nil {
			return nil, &ArchiveError{Code: CodeInvalidArchive, Message: fmt.Sprintf("cannot read entry %q", f.Name)}
		}
		if int64(len(body)) > remaining {
			return nil, &CapacityError{
				Code:    CodeExtractedTooLarge,
				Limit:   limits.MaxExtractedBytes,
				Message: "archive extracts beyond the declared sizes",
			}
		}

		archive.TotalBytes += int64(len(body))
		archive.Files = append(archive.Files, ArchiveFile{Path: cleaned, Data: body})
	}

	return archive, nil
}
