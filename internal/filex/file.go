// Package filex holds the local file helpers of the terminal client: making
// the download directory, describing files picked for upload and turning
// server-provided names into safe local paths.
package filex

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EnsureDir creates dir if needed. A relative dir is resolved against the
// working directory. The absolute path is returned.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// FileInfo describes a local file about to be uploaded.
type FileInfo struct {
	Path     string
	Name     string
	Size     int64
	MimeType string
}

// Describe stats path and detects its MIME type from the content. Media
// type parameters such as charset are dropped.
func Describe(path string) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	if st.IsDir() {
		return FileInfo{}, fmt.Errorf("%s is a directory", path)
	}

	m, err := mimetype.DetectFile(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("detect type of %s: %w", path, err)
	}

	return FileInfo{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     st.Size(),
		MimeType: baseMediaType(m.String()),
	}, nil
}

func baseMediaType(v string) string {
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	if i := strings.IndexByte(v, ';'); i >= 0 {
		return strings.TrimSpace(v[:i])
	}
	return v
}

// ErrUnsafeName is returned for names that cannot become a file in dir.
var ErrUnsafeName = errors.New("unsafe file name")

// SafeJoin places the base name of name inside dir. Names that reduce to
// nothing usable are rejected.
func SafeJoin(dir, name string) (string, error) {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return filepath.Join(dir, base), nil
}
