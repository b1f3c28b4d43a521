// Package artifacts resolves pipeline output files for download and
// export. Artifact locations come from the pipeline result as a
// name to path mapping; everything here tolerates paths that have
// disappeared from disk since the run finished.
package artifacts

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/podstudio-labs/podstudio-go/internal/repo"
)

// Artifact type labels derived from the artifact name and file extension.
const (
	TypeTranscript = "transcript"
	TypeAudio      = "audio"
	TypeAnalysis   = "analysis"
	TypeExport     = "export"
	TypeOther      = "other"
)

// ErrUnsupportedFormat marks an export format outside the known table.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Info describes one artifact that still exists on disk.
type Info struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Export is a resolved export target ready to be served.
type Export struct {
	Path      string
	MediaType string
}

var exportFormats = map[string]struct {
	artifactKey string
	mediaType   string
}{
	"txt":  {"latest_txt", "text/plain"},
	"json": {"latest_json", "application/json"},
	"srt":  {"latest_srt", "text/srt"},
	"vtt":  {"latest_vtt", "text/vtt"},
	"md":   {"deepcast_md", "text/markdown"},
}

// List returns the artifacts that exist on disk, sorted by name.
// Paths that no longer resolve are dropped silently.
func List(artifacts map[string]string) []Info {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Info, 0, len(names))
	for _, name := range names {
		path := artifacts[name]
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		var size int64
		if stat.Mode().IsRegular() {
			size = stat.Size()
		}
		out = append(out, Info{
			Name: name,
			Path: path,
			Size: size,
			Type: classify(name, path),
		})
	}
	return out
}

// classify buckets an artifact by its name and extension. Name matches
// take precedence over extension matches within each bucket, and the
// buckets are checked in a fixed order.
func classify(name, path string) string {
	lower := strings.ToLower(name)
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case strings.Contains(lower, "transcript") || ext == ".json":
		return TypeTranscript
	case strings.Contains(lower, "audio") || ext == ".wav" || ext == ".mp3" || ext == ".aac":
		return TypeAudio
	case strings.Contains(lower, "deepcast") || strings.Contains(lower, "analysis"):
		return TypeAnalysis
	case ext == ".txt" || ext == ".srt" || ext == ".vtt" || ext == ".md" || ext == ".pdf":
		return TypeExport
	default:
		return TypeOther
	}
}

// ResolveTranscript locates the transcript JSON, preferring the explicit
// transcript artifact over the latest_json fallback.
func ResolveTranscript(artifacts map[string]string) (string, error) {
	path := artifacts["transcript"]
	if path == "" {
		path = artifacts["latest_json"]
	}
	if path == "" {
		return "", fmt.Errorf("transcript not available: %w", repo.ErrNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("transcript file missing: %w", repo.ErrNotFound)
	}
	return path, nil
}

// ResolveExport maps an export format to an artifact file and media type.
// Unknown formats fail with ErrUnsupportedFormat; a known format whose
// artifact was never produced or has vanished fails with repo.ErrNotFound.
func ResolveExport(artifacts map[string]string, format string) (Export, error) {
	target, ok := exportFormats[strings.ToLower(format)]
	if !ok {
		return Export{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	path := artifacts[target.artifactKey]
	if path == "" {
		return Export{}, fmt.Errorf("no %s artifact for this run: %w", format, repo.ErrNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		return Export{}, fmt.Errorf("artifact file missing: %w", repo.ErrNotFound)
	}
	return Export{Path: path, MediaType: target.mediaType}, nil
}

// WriteZip streams every artifact that still exists into a zip archive
// under its flat base name, in sorted artifact-name order.
func WriteZip(w io.Writer, artifacts map[string]string) error {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	for _, name := range names {
		path := artifacts[name]
		stat, err := os.Stat(path)
		if err != nil || !stat.Mode().IsRegular() {
			continue
		}
		if err := addZipFile(zw, path, stat); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addZipFile(zw *zip.Writer, path string, stat os.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := &zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: stat.ModTime(),
	}
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}

// ZipFilename is the download filename for a run's artifact bundle.
func ZipFilename(runID string) string {
	return "podx-run-" + runID + ".zip"
}
