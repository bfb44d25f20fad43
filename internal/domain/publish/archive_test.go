package publish

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// buildZip writes the given path->content pairs into a zip archive.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for path, body := range files {
		w, err := zw.Create(path)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseArchive_Valid(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html":    "<h1>hi</h1>",
		"about.html":    "<h1>about</h1>",
		"assets/app.js": "console.log(1)",
	})

	archive, err := ParseArchive(data, DefaultLimits)
	require.NoError(t, err)
	require.Len(t, archive.Files, 3)

	byPath := map[string]string{}
	var total int64
	for _, f := range archive.Files {
		byPath[f.Path] = string(f.Data)
		total += int64(len(f.Data))
	}
	require.Equal(t, "<h1>hi</h1>", byPath["index.html"])
	require.Equal(t, "console.log(1)", byPath["assets/app.js"])
	require.Equal(t, total, archive.TotalBytes)
}

func TestParseArchive_SkipsDirectoryEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("assets/")
	require.NoError(t, err)
	w, err := zw.Create("assets/app.js")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	archive, err := ParseArchive(buf.Bytes(), DefaultLimits)
	require.NoError(t, err)
	require.Len(t, archive.Files, 1)
	require.Equal(t, "assets/app.js", archive.Files[0].Path)
}

func TestParseArchive_NotAZip(t *testing.T) {
	_, err := ParseArchive([]byte("this is not a zip"), DefaultLimits)
	var archiveErr *ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	require.Equal(t, CodeInvalidArchive, archiveErr.Code)
}

func TestParseArchive_ArchiveTooLarge(t *testing.T) {
	data := buildZip(t, map[string]string{"index.html": strings.Repeat("a", 4096)})

	limits := DefaultLimits
	limits.MaxArchiveBytes = 64

	_, err := ParseArchive(data, limits)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, CodeArchiveTooLarge, capErr.Code)
	require.Equal(t, int64(64), capErr.Limit)
}

func TestParseArchive_ExtractedTooLarge(t *testing.T) {
	// Highly compressible payload: small archive, big extracted size.
	data := buildZip(t, map[string]string{
		"a.bin": strings.Repeat("\x00", 1<<20),
		"b.bin": strings.Repeat("\x00", 1<<20),
	})

	limits := DefaultLimits
	limits.MaxExtractedBytes = 1 << 20

	_, err := ParseArchive(data, limits)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, CodeExtractedTooLarge, capErr.Code)
}

func TestParseArchive_TooManyFiles(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.html": "a",
		"b.html": "b",
		"c.html": "c",
	})

	limits := DefaultLimits
	limits.MaxFiles = 2

	_, err := ParseArchive(data, limits)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, CodeTooManyFiles, capErr.Code)
}

func TestParseArchive_SymlinkRejected(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: "link"}
	hdr.SetMode(os.ModeSymlink | 0o777)
	w, err := zw.CreateHeader(hdr)
	require.NoError(t, err)
	_, err = w.Write([]byte("/etc/passwd"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ParseArchive(buf.Bytes(), DefaultLimits)
	var archiveErr *ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	require.Equal(t, CodeSymlinkNotAllowed, archiveErr.Code)
}

func TestParseArchive_EntryPathRejected(t *testing.T) {
	for _, name := range []string{
		"../escape.html",
		"/absolute.html",
		"a/./b.html",
		"nul\x00.html",
		"back\\slash.html",
	} {
		t.Run(name, func(t *testing.T) {
			data := buildZip(t, map[string]string{name: "x"})

			_, err := ParseArchive(data, DefaultLimits)
			var archiveErr *ArchiveError
			require.ErrorAs(t, err, &archiveErr)
			require.Equal(t, CodeInvalidEntryPath, archiveErr.Code)
		})
	}
}

func TestParseArchive_DuplicatePathRejected(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for range 2 {
		w, err := zw.Create("index.html")
		require.NoError(t, err)
		_, err = w.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	_, err := ParseArchive(buf.Bytes(), DefaultLimits)
	var archiveErr *ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	require.Equal(t, CodeInvalidEntryPath, archiveErr.Code)
}
