package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// SharePublisher copies approved files onto the shared network directory and
// returns the URL they are reachable at. The copy happens before the status
// flip, so a published file always has a live URL.
type SharePublisher struct {
	shareDir string
	baseURL  string
}

// NewSharePublisher ensures the share directory exists and returns a handle.
func NewSharePublisher(shareDir, baseURL string) (*SharePublisher, error) {
	if shareDir == "" {
		return nil, fmt.Errorf("share directory required")
	}
	if err := os.MkdirAll(shareDir, 0o755); err != nil {
		return nil, fmt.Errorf("create share directory: %w", err)
	}
	return &SharePublisher{shareDir: shareDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Publish copies the stored file to the share under a name that is unique per
// file and still recognisable to humans.
func (p *SharePublisher) Publish(ctx context.Context, storedPath, fileID, originalName string) (string, error) {
	source, err := os.Open(storedPath)
	if err != nil {
		return "", fmt.Errorf("open stored file: %w", err)
	}
	defer source.Close() //nolint:errcheck

	name := fmt.Sprintf("%s_%s", fileID, sanitizeName(originalName))
	target := filepath.Join(p.shareDir, name)
	dest, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create published file: %w", err)
	}
	defer dest.Close() //nolint:errcheck

	if _, err := io.Copy(dest, source); err != nil {
		return "", fmt.Errorf("copy to share: %w", err)
	}
	return p.baseURL + "/" + url.PathEscape(name), nil
}

// sanitizeName strips path separators and control characters so the published
// name cannot escape the share directory.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		name = ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
